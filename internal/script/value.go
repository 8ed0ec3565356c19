package script

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the dynamic type of a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindString
	KindBytes
	KindArray
	KindDictionary
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindDictionary:
		return "dictionary"
	default:
		return "unknown"
	}
}

// OrderedDict is an insertion-ordered string-keyed map, matching the
// original language's dictionary semantics (iteration order is creation
// order, not sorted).
type OrderedDict struct {
	keys   []string
	values map[string]*Value
}

// NewOrderedDict returns an empty OrderedDict.
func NewOrderedDict() *OrderedDict {
	return &OrderedDict{values: make(map[string]*Value)}
}

// Get returns the value for key and whether it was present.
func (d *OrderedDict) Get(key string) (*Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Set inserts or updates key, preserving original insertion position on
// update.
func (d *OrderedDict) Set(key string, v *Value) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

// Delete removes key if present.
func (d *OrderedDict) Delete(key string) {
	if _, exists := d.values[key]; !exists {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (d *OrderedDict) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of entries.
func (d *OrderedDict) Len() int { return len(d.keys) }

// Clone returns a deep copy.
func (d *OrderedDict) Clone() *OrderedDict {
	nd := NewOrderedDict()
	for _, k := range d.keys {
		v := d.values[k].Clone()
		nd.Set(k, &v)
	}
	return nd
}

// Value is the dynamic value type the interpreter operates on: a closed
// sum of Null, Boolean, Integer, Float, String, Bytes, Array, and
// Dictionary.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
	Array []Value
	Dict  *OrderedDict
}

func Null() Value               { return Value{Kind: KindNull} }
func Bool(b bool) Value         { return Value{Kind: KindBoolean, Bool: b} }
func Int(i int64) Value         { return Value{Kind: KindInteger, Int: i} }
func Float(f float64) Value     { return Value{Kind: KindFloat, Float: f} }
func Str(s string) Value        { return Value{Kind: KindString, Str: s} }
func Bytes(b []byte) Value      { return Value{Kind: KindBytes, Bytes: b} }
func Array(vs []Value) Value    { return Value{Kind: KindArray, Array: vs} }
func Dict(d *OrderedDict) Value { return Value{Kind: KindDictionary, Dict: d} }

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindArray:
		arr := make([]Value, len(v.Array))
		for i, e := range v.Array {
			arr[i] = e.Clone()
		}
		return Value{Kind: KindArray, Array: arr}
	case KindDictionary:
		return Value{Kind: KindDictionary, Dict: v.Dict.Clone()}
	case KindBytes:
		b := make([]byte, len(v.Bytes))
		copy(b, v.Bytes)
		return Value{Kind: KindBytes, Bytes: b}
	default:
		return v
	}
}

// Truthy implements the language's truthiness rules: false is falsy, 0 and
// 0.0 (and NaN) are falsy, "" is falsy, empty bytes/array/dict are falsy,
// Null is falsy. Everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBoolean:
		return v.Bool
	case KindInteger:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0 && !math.IsNaN(v.Float)
	case KindString:
		return v.Str != ""
	case KindBytes:
		return len(v.Bytes) > 0
	case KindArray:
		return len(v.Array) > 0
	case KindDictionary:
		return v.Dict.Len() > 0
	default:
		return false
	}
}

// Equal implements structural equality across values of the same kind;
// values of differing kinds are never equal (no cross-kind coercion).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBoolean:
		return a.Bool == b.Bool
	case KindInteger:
		return a.Int == b.Int
	case KindFloat:
		return a.Float == b.Float
	case KindString:
		return a.Str == b.Str
	case KindBytes:
		if len(a.Bytes) != len(b.Bytes) {
			return false
		}
		for i := range a.Bytes {
			if a.Bytes[i] != b.Bytes[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(a.Array) != len(b.Array) {
			return false
		}
		for i := range a.Array {
			if !Equal(a.Array[i], b.Array[i]) {
				return false
			}
		}
		return true
	case KindDictionary:
		if a.Dict.Len() != b.Dict.Len() {
			return false
		}
		for _, k := range a.Dict.Keys() {
			av, _ := a.Dict.Get(k)
			bv, ok := b.Dict.Get(k)
			if !ok || !Equal(*av, *bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Display renders v the way the `str()` and `print()` builtins do: strings unquoted, everything else in a literal-like form.
func (v Value) Display() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindBytes:
		return string(v.Bytes)
	case KindArray:
		parts := make([]string, len(v.Array))
		for i, e := range v.Array {
			parts[i] = e.debug()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDictionary:
		parts := make([]string, 0, v.Dict.Len())
		for _, k := range v.Dict.Keys() {
			val, _ := v.Dict.Get(k)
			parts = append(parts, fmt.Sprintf("%q: %s", k, val.debug()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return ""
	}
}

func (v Value) debug() string {
	if v.Kind == KindString {
		return strconv.Quote(v.Str)
	}
	return v.Display()
}
