// Package reference models foreign keys that arrive either as a bare id or
// as the embedded entity, and resolves them against a lookup table.
package reference

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Identifiable is implemented by every entity that can be referenced.
type Identifiable interface {
	RefID() string
}

type Kind int

const (
	KindEmpty Kind = iota
	KindID
	KindInline
)

// Reference is either Id(string) or Inline(T). The zero value is empty.
type Reference[T Identifiable] struct {
	kind   Kind
	id     string
	inline T
}

func ByID[T Identifiable](id string) Reference[T] {
	if id == "" {
		return Reference[T]{}
	}
	return Reference[T]{kind: KindID, id: id}
}

func Inline[T Identifiable](entity T) Reference[T] {
	return Reference[T]{kind: KindInline, inline: entity}
}

// FromPtr builds an id reference, or an empty one when id is nil.
func FromPtr[T Identifiable](id *string) Reference[T] {
	if id == nil {
		return Reference[T]{}
	}
	return ByID[T](*id)
}

func (r Reference[T]) Kind() Kind {
	return r.kind
}

func (r Reference[T]) IsEmpty() bool {
	return r.kind == KindEmpty
}

func (r Reference[T]) IsInline() bool {
	return r.kind == KindInline
}

// ID returns the referenced identifier for either variant.
func (r Reference[T]) ID() string {
	switch r.kind {
	case KindID:
		return r.id
	case KindInline:
		return r.inline.RefID()
	default:
		return ""
	}
}

// IDPtr returns nil for an empty reference.
func (r Reference[T]) IDPtr() *string {
	if r.kind == KindEmpty {
		return nil
	}
	id := r.ID()
	return &id
}

// Entity returns the embedded value when the reference is inline.
func (r Reference[T]) Entity() (T, bool) {
	if r.kind != KindInline {
		var zero T
		return zero, false
	}
	return r.inline, true
}

func (r Reference[T]) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case KindID:
		return json.Marshal(r.id)
	case KindInline:
		return json.Marshal(r.inline)
	default:
		return []byte("null"), nil
	}
}

func (r *Reference[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = Reference[T]{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return fmt.Errorf("decode reference id: %w", err)
		}
		*r = ByID[T](id)
		return nil
	case '{':
		var entity T
		if err := json.Unmarshal(trimmed, &entity); err != nil {
			return fmt.Errorf("decode embedded reference: %w", err)
		}
		*r = Inline(entity)
		return nil
	default:
		return fmt.Errorf("reference must be a string or an object, got %s", string(trimmed))
	}
}
