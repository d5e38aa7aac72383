package model

import (
	"bytes"
	"encoding/json"

	"github.com/ethpandaops/angles-client-go/pkg/canonical"
)

// Opt holds an optional value with an explicit presence bit. The zero
// value is unset and is omitted when serialized.
type Opt[T any] struct {
	value T
	set   bool
}

// Compile-time interface check.
var _ canonical.Optional = Opt[string]{}

// Some returns a set Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, set: true}
}

// None returns an unset Opt.
func None[T any]() Opt[T] {
	return Opt[T]{}
}

// IsSet reports whether a value is present.
func (o Opt[T]) IsSet() bool {
	return o.set
}

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

// OrElse returns the value when present, fallback otherwise.
func (o Opt[T]) OrElse(fallback T) T {
	if !o.set {
		return fallback
	}

	return o.value
}

// Lookup exposes the value to the canonicalizer.
func (o Opt[T]) Lookup() (any, bool) {
	if !o.set {
		return nil, false
	}

	return o.value, true
}

// MarshalJSON encodes an unset Opt as null.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}

	return json.Marshal(o.value)
}

// UnmarshalJSON leaves the Opt unset for null input.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Opt[T]{}

		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*o = Some(v)

	return nil
}
