package snapshot

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rohankatakam/kgvault/internal/errors"
)

// Kind identifies the variant held by a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a property value that can be stored in a snapshot.
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func String(s string) Value { return Value{kind: KindString, s: s} }

func List(items ...Value) Value { return Value{kind: KindList, list: items} }

func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind { return v.kind }

// FromAny converts a property value read from the graph store.
// Byte slices, temporal and spatial types, NaN and infinities are rejected.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, errors.SerializationErrorf("integer %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, errors.SerializationErrorf("integer %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case float32:
		return floatValue(float64(t))
	case float64:
		return floatValue(t)
	case string:
		return String(t), nil
	case []byte:
		return Value{}, errors.SerializationErrorf("binary property values are not supported (%d bytes)", len(t))
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			item, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return List(items...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			item, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			m[k] = item
		}
		return Map(m), nil
	}

	// typed slices such as []string or []int64
	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]Value, rv.Len())
		for i := range items {
			item, err := FromAny(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return List(items...), nil
	}

	return Value{}, errors.SerializationErrorf("unsupported property value type %T", x)
}

func floatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, errors.SerializationErrorf("float value %v is not representable", f)
	}
	return Float(f), nil
}

// FromProperties converts a property map. The offending key is named on error.
func FromProperties(props map[string]any) (map[string]Value, error) {
	out := make(map[string]Value, len(props))
	for k, x := range props {
		v, err := FromAny(x)
		if err != nil {
			if e, ok := err.(*errors.Error); ok {
				return nil, e.WithContext("property", k)
			}
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// Interface returns the native Go form used when writing to the store:
// nil, bool, int64, float64, string, []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// ToProperties converts a snapshot property map back to native values
func ToProperties(props map[string]Value) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v.Interface()
	}
	return out
}

// Equal reports deep equality; int and float are never equal to each other
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, a := range v.m {
			b, ok := o.m[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.kind, err)
	}
	return string(b)
}

// MarshalJSON writes floats with a decimal point or exponent so that they
// decode as floats again.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindInt:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, errors.SerializationErrorf("float value %v is not representable", v.f)
		}
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return []byte(s), nil
	case KindString:
		return json.Marshal(v.s)
	case KindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			b, err := v.m[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return nil, errors.SerializationErrorf("unknown value kind %s", v.kind)
}

// UnmarshalJSON keeps integers and floats apart: a number without a decimal
// point or exponent is an int.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	decoded, err := fromDecoded(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func fromDecoded(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		s := t.String()
		if strings.ContainsAny(s, ".eE") {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Value{}, fmt.Errorf("invalid float %q: %w", s, err)
			}
			return Float(f), nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid integer %q: %w", s, err)
		}
		return Int(i), nil
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			item, err := fromDecoded(e)
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return List(items...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			item, err := fromDecoded(e)
			if err != nil {
				return Value{}, err
			}
			m[k] = item
		}
		return Map(m), nil
	}
	return Value{}, fmt.Errorf("unexpected JSON value %T", raw)
}
