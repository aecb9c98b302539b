package receipt

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// LinkClaims binds a download token to one receipt digest.
type LinkClaims struct {
	Digest string `json:"digest"`
	jwt.RegisteredClaims
}

// Signer issues and checks HS256 download links.
type Signer struct {
	secret []byte
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewSigner builds links of the form prefix/{digest}?token=...
func NewSigner(secret string, ttl time.Duration, prefix string) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, prefix: prefix, now: time.Now}
}

// Path is the stable, unsigned location of a receipt.
func (s *Signer) Path(digest string) string {
	return fmt.Sprintf("%s/%s", s.prefix, digest)
}

func (s *Signer) Sign(digest string) (string, error) {
	now := s.now()
	claims := &LinkClaims{
		Digest: digest,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   digest,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// URL returns a signed download link for digest.
func (s *Signer) URL(digest string) (string, error) {
	token, err := s.Sign(digest)
	if err != nil {
		return "", err
	}
	return s.Path(digest) + "?token=" + url.QueryEscape(token), nil
}

// Verify checks that token is valid, unexpired and issued for digest.
func (s *Signer) Verify(tokenString, digest string) error {
	token, err := jwt.ParseWithClaims(tokenString, &LinkClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(*LinkClaims)
	if !ok || !token.Valid || claims.Digest != digest {
		return ErrInvalidToken
	}
	return nil
}
