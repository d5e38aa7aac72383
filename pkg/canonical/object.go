package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object is an insertion-ordered mapping of string keys to canonical values.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject creates an empty Object with room for n entries.
func NewObject(n int) *Object {
	return &Object{
		keys:   make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// Set stores v under key. Re-setting a key keeps its original position.
func (o *Object) Set(key string, v any) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}

	o.values[key] = v
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]

	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.values[key]

	return ok
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)

	return keys
}

// Len returns the number of entries.
func (o *Object) Len() int {
	return len(o.keys)
}

// MarshalJSON encodes the object compactly, preserving key order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		k, err := encode(key)
		if err != nil {
			return nil, fmt.Errorf("encoding key %q: %w", key, err)
		}

		buf.Write(k)
		buf.WriteByte(':')

		v, err := encode(o.values[key])
		if err != nil {
			return nil, fmt.Errorf("encoding value of %q: %w", key, err)
		}

		buf.Write(v)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// encode writes v as compact JSON without HTML escaping.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
