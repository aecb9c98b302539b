package receipt_test

import (
	"net/url"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/fleet-expense/internal/receipt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func tokenOf(link string) string {
	u, err := url.Parse(link)
	Expect(err).NotTo(HaveOccurred())
	return u.Query().Get("token")
}

var _ = Describe("Signer", func() {
	var signer *receipt.Signer

	BeforeEach(func() {
		signer = receipt.NewSigner(testSecret, time.Hour, "/api/v1/receipts")
	})

	It("should build a stable path and a signed link", func() {
		Expect(signer.Path("abc")).To(Equal("/api/v1/receipts/abc"))

		link, err := signer.URL("abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.HasPrefix(link, "/api/v1/receipts/abc?token=")).To(BeTrue())
		Expect(signer.Verify(tokenOf(link), "abc")).To(Succeed())
	})

	It("should bind the token to its digest", func() {
		token, err := signer.Sign("abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(signer.Verify(token, "def")).To(MatchError(receipt.ErrInvalidToken))
	})

	It("should reject tokens signed with another secret", func() {
		other := receipt.NewSigner("ffffffffffffffffffffffffffffffff", time.Hour, "/r")
		token, err := other.Sign("abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(signer.Verify(token, "abc")).To(MatchError(receipt.ErrInvalidToken))
	})

	It("should report expired tokens", func() {
		short := receipt.NewSigner(testSecret, -time.Minute, "/r")
		token, err := short.Sign("abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(signer.Verify(token, "abc")).To(MatchError(receipt.ErrTokenExpired))
	})

	It("should reject garbage", func() {
		Expect(signer.Verify("not.a.token", "abc")).To(MatchError(receipt.ErrInvalidToken))
		Expect(signer.Verify("", "abc")).To(MatchError(receipt.ErrInvalidToken))
	})
})
