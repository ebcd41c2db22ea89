// Package jsonvalue models arbitrary JSON content as a tagged sum rather
// than leaning on interface{}, so processors can pattern-match on shape
// instead of type-asserting their way through a map[string]any tree.
package jsonvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies which alternative of the sum a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a JSON value preserving object key insertion order. Exactly one
// of the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind   Kind
	Bool   bool
	Number json.Number
	String string
	Array  []Value
	Object *OrderedMap
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// String wraps a string.
func String(s string) Value { return Value{Kind: KindString, String: s} }

// Number wraps a json.Number. Use NumberFromFloat for plain float64 input.
func Number(n json.Number) Value { return Value{Kind: KindNumber, Number: n} }

// NumberFromFloat wraps a float64 as a Number value.
func NumberFromFloat(f float64) Value {
	return Value{Kind: KindNumber, Number: json.Number(fmt.Sprintf("%g", f))}
}

// Arr wraps a slice of values.
func Arr(values []Value) Value { return Value{Kind: KindArray, Array: values} }

// Obj wraps an ordered map.
func Obj(m *OrderedMap) Value { return Value{Kind: KindObject, Object: m} }

// OrderedMap is a string-keyed map that remembers insertion order, the way
// a JSON object's key order is observable on the wire.
type OrderedMap struct {
	keys   []string
	values map[string]Value
}

// NewOrderedMap returns an empty ordered map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]Value)}
}

// Set inserts or overwrites a key. Overwriting an existing key keeps its
// original position.
func (m *OrderedMap) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// Parse decodes raw JSON bytes into a Value, preserving object key order
// and numeric precision via json.Number.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return parseValue(dec, tok)
}

func parseValue(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return Value{}, fmt.Errorf("jsonvalue: unexpected delimiter %q", t)
		}
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	default:
		return Value{}, fmt.Errorf("jsonvalue: unexpected token %T", tok)
	}
}

func parseObject(dec *json.Decoder) (Value, error) {
	m := NewOrderedMap()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Value{}, fmt.Errorf("jsonvalue: object key is not a string: %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		val, err := parseValue(dec, valTok)
		if err != nil {
			return Value{}, err
		}
		m.Set(key, val)
	}
	// Consume closing '}'.
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Obj(m), nil
}

func parseArray(dec *json.Decoder) (Value, error) {
	var arr []Value
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		val, err := parseValue(dec, tok)
		if err != nil {
			return Value{}, err
		}
		arr = append(arr, val)
	}
	// Consume closing ']'.
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Arr(arr), nil
}

// Marshal serializes a Value back to canonical JSON bytes, preserving
// object key order.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		s := v.Number.String()
		if s == "" {
			s = "0"
		}
		buf.WriteString(s)
	case KindString:
		b, err := json.Marshal(v.String)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, elem := range v.Array {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		if v.Object != nil {
			for i, k := range v.Object.Keys() {
				if i > 0 {
					buf.WriteByte(',')
				}
				kb, err := json.Marshal(k)
				if err != nil {
					return err
				}
				buf.Write(kb)
				buf.WriteByte(':')
				val, _ := v.Object.Get(k)
				if err := writeValue(buf, val); err != nil {
					return err
				}
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("jsonvalue: unknown kind %v", v.Kind)
	}
	return nil
}

// IsContainer reports whether v is an array or object.
func (v Value) IsContainer() bool {
	return v.Kind == KindArray || v.Kind == KindObject
}
