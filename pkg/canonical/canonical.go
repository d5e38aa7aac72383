// Package canonical converts typed Go value graphs into JSON-safe trees.
//
// A canonical tree is built only from nil, bool, int64, uint64, float64,
// string, []any and *Object. Absent record and mapping fields are dropped
// instead of being emitted as null, so the remote API can tell "unset"
// apart from an explicit value.
package canonical

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind identifies which canonicalization rule applies to a value.
type Kind int

const (
	KindNull Kind = iota
	KindPrimitive
	KindEnum
	KindTimestamp
	KindRecord
	KindMapping
	KindSequence
	KindFallback
)

var kindNames = [...]string{
	KindNull:      "null",
	KindPrimitive: "primitive",
	KindEnum:      "enum",
	KindTimestamp: "timestamp",
	KindRecord:    "record",
	KindMapping:   "mapping",
	KindSequence:  "sequence",
	KindFallback:  "fallback",
}

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}

	return kindNames[k]
}

// Optional is implemented by wrappers that carry an explicit presence bit.
type Optional interface {
	Lookup() (any, bool)
}

// Enum is implemented by enumerations that serialize to a literal.
type Enum interface {
	EnumValue() any
}

// Timestamp is implemented by date/time values with their own ISO-8601
// rendering.
type Timestamp interface {
	ISO8601() string
}

var (
	timeType          = reflect.TypeOf(time.Time{})
	objectType        = reflect.TypeOf((*Object)(nil))
	optionalType      = reflect.TypeOf((*Optional)(nil)).Elem()
	enumType          = reflect.TypeOf((*Enum)(nil)).Elem()
	timestampType     = reflect.TypeOf((*Timestamp)(nil)).Elem()
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// Canonicalizer converts values into canonical trees.
type Canonicalizer struct {
	log logrus.FieldLogger
}

// New creates a Canonicalizer that reports serialization gaps to log.
func New(log logrus.FieldLogger) *Canonicalizer {
	return &Canonicalizer{
		log: log.WithField("component", "canonicalizer"),
	}
}

var std = New(logrus.StandardLogger())

// Canonicalize converts v using the package-level Canonicalizer.
func Canonicalize(v any) any {
	return std.Canonicalize(v)
}

// Marshal canonicalizes v and encodes it using the package-level
// Canonicalizer.
func Marshal(v any) ([]byte, error) {
	return std.Marshal(v)
}

// Canonicalize converts v into a canonical tree. It never panics for
// values built from the model types; unknown leaves degrade to strings.
func (c *Canonicalizer) Canonicalize(v any) any {
	return c.value(reflect.ValueOf(v))
}

// Marshal canonicalizes v and encodes it as compact UTF-8 JSON.
func (c *Canonicalizer) Marshal(v any) ([]byte, error) {
	data, err := encode(c.Canonicalize(v))
	if err != nil {
		return nil, fmt.Errorf("encoding canonical value: %w", err)
	}

	return data, nil
}

// Classify reports which rule Canonicalize applies to v.
func Classify(v any) Kind {
	return classify(unwrap(reflect.ValueOf(v)))
}

// unwrap dereferences pointers and interfaces and resolves Optional
// wrappers. The zero Value is returned for anything absent.
func unwrap(v reflect.Value) reflect.Value {
	for v.IsValid() {
		switch v.Kind() {
		case reflect.Pointer:
			if v.IsNil() {
				return reflect.Value{}
			}

			if v.Type() == objectType {
				return v
			}

			v = v.Elem()

			continue
		case reflect.Interface:
			if v.IsNil() {
				return reflect.Value{}
			}

			v = v.Elem()

			continue
		case reflect.Slice, reflect.Map:
			if v.IsNil() {
				return reflect.Value{}
			}
		}

		if v.CanInterface() && v.Type().Implements(optionalType) {
			inner, ok := v.Interface().(Optional).Lookup()
			if !ok {
				return reflect.Value{}
			}

			v = reflect.ValueOf(inner)

			continue
		}

		return v
	}

	return v
}

// classify expects an unwrapped value.
func classify(v reflect.Value) Kind {
	if !v.IsValid() {
		return KindNull
	}

	t := v.Type()

	switch {
	case t == objectType:
		return KindMapping
	case t.Implements(enumType):
		return KindEnum
	case t == timeType, t.Implements(timestampType):
		return KindTimestamp
	case t.Implements(jsonMarshalerType):
		return KindFallback
	}

	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindPrimitive
	case reflect.Float32, reflect.Float64:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return KindFallback
		}

		return KindPrimitive
	case reflect.Struct:
		return KindRecord
	case reflect.Map:
		return KindMapping
	case reflect.Slice, reflect.Array:
		return KindSequence
	default:
		return KindFallback
	}
}

func (c *Canonicalizer) value(v reflect.Value) any {
	v = unwrap(v)

	switch classify(v) {
	case KindNull:
		return nil
	case KindPrimitive:
		return primitive(v)
	case KindEnum:
		return c.enum(v)
	case KindTimestamp:
		if v.Type() == timeType {
			t, _ := v.Interface().(time.Time)

			return t.Format(time.RFC3339Nano)
		}

		return v.Interface().(Timestamp).ISO8601()
	case KindRecord:
		obj := NewObject(v.NumField())
		c.fields(v, obj)

		return obj
	case KindMapping:
		if v.Type() == objectType {
			return c.object(v.Interface().(*Object))
		}

		if isSet(v.Type()) {
			return c.set(v)
		}

		return c.mapping(v)
	case KindSequence:
		list := make([]any, v.Len())
		for i := range list {
			list[i] = c.value(v.Index(i))
		}

		return list
	default:
		return c.fallback(v)
	}
}

func primitive(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()
	case reflect.Float32:
		// Shortest float32 text, so 0.1 stays 0.1 once widened.
		f, err := strconv.ParseFloat(strconv.FormatFloat(v.Float(), 'g', -1, 32), 64)
		if err != nil {
			return v.Float()
		}

		return f
	case reflect.Float64:
		return v.Float()
	default:
		return v.String()
	}
}

func (c *Canonicalizer) enum(v reflect.Value) any {
	lit := reflect.ValueOf(v.Interface().(Enum).EnumValue())
	if !lit.IsValid() {
		return nil
	}

	switch lit.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return primitive(lit)
	default:
		return c.fallback(lit)
	}
}

// fields appends the present exported fields of the struct v to obj in
// declaration order. Untagged embedded structs are flattened.
func (c *Canonicalizer) fields(v reflect.Value, obj *Object) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		name, skip := fieldName(f)
		if skip {
			continue
		}

		fv := v.Field(i)

		if f.Anonymous && name == "" {
			if ev := unwrap(fv); ev.IsValid() && classify(ev) == KindRecord {
				c.fields(ev, obj)

				continue
			}
		}

		if name == "" {
			name = f.Name
		}

		cv := c.value(fv)
		if cv == nil {
			continue
		}

		obj.Set(name, cv)
	}
}

func fieldName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", true
	}

	name, _, _ := strings.Cut(tag, ",")

	return name, false
}

func (c *Canonicalizer) object(src *Object) *Object {
	obj := NewObject(src.Len())

	for _, key := range src.keys {
		cv := c.value(reflect.ValueOf(src.values[key]))
		if cv == nil {
			continue
		}

		obj.Set(key, cv)
	}

	return obj
}

type mapEntry struct {
	key string
	val reflect.Value
}

func (c *Canonicalizer) mapping(v reflect.Value) *Object {
	entries := make([]mapEntry, 0, v.Len())

	iter := v.MapRange()
	for iter.Next() {
		entries = append(entries, mapEntry{
			key: mapKey(iter.Key()),
			val: iter.Value(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].key < entries[j].key
	})

	obj := NewObject(len(entries))

	for _, e := range entries {
		cv := c.value(e.val)
		if cv == nil {
			continue
		}

		obj.Set(e.key, cv)
	}

	return obj
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}

	if k.CanInterface() {
		if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
			if b, err := tm.MarshalText(); err == nil {
				return string(b)
			}
		}

		return fmt.Sprint(k.Interface())
	}

	return k.String()
}

// isSet reports whether t is a map used as a set, i.e. map[K]struct{}.
func isSet(t reflect.Type) bool {
	elem := t.Elem()

	return elem.Kind() == reflect.Struct && elem.NumField() == 0
}

type setMember struct {
	sortKey string
	val     any
}

// set renders a map[K]struct{} as a list sorted by each member's JSON
// encoding, which keeps the output deterministic.
func (c *Canonicalizer) set(v reflect.Value) []any {
	members := make([]setMember, 0, v.Len())

	iter := v.MapRange()
	for iter.Next() {
		cv := c.value(iter.Key())
		b, _ := encode(cv)

		members = append(members, setMember{sortKey: string(b), val: cv})
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].sortKey < members[j].sortKey
	})

	list := make([]any, len(members))
	for i, m := range members {
		list[i] = m.val
	}

	return list
}

func (c *Canonicalizer) fallback(v reflect.Value) any {
	if !v.CanInterface() {
		c.logGap(v)

		return v.String()
	}

	switch val := v.Interface().(type) {
	case json.Marshaler:
		if data, err := val.MarshalJSON(); err == nil {
			if tree, err := decodeTree(data); err == nil {
				return tree
			}
		}
	case encoding.TextMarshaler:
		if b, err := val.MarshalText(); err == nil {
			return string(b)
		}
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	}

	c.logGap(v)

	return fmt.Sprint(v.Interface())
}

func (c *Canonicalizer) logGap(v reflect.Value) {
	c.log.WithField("type", v.Type().String()).
		Warn("No canonical form for value, using string representation")
}

// decodeTree decodes JSON into a canonical tree, keeping object key order
// and dropping null object members.
func decodeTree(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tree, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("decoding json tree: %w", err)
	}

	return tree, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject(4)

			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}

				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", kt)
				}

				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}

				if val == nil {
					continue
				}

				obj.Set(key, val)
			}

			if _, err := dec.Token(); err != nil {
				return nil, err
			}

			return obj, nil
		case '[':
			list := make([]any, 0, 4)

			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}

				list = append(list, val)
			}

			if _, err := dec.Token(); err != nil {
				return nil, err
			}

			return list, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}

		return t.Float64()
	default:
		return t, nil
	}
}
