package template

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the type held by a Value.
type Kind int

const (
	// KindNone is the absent value produced by optional access.
	KindNone Kind = iota
	KindString
	KindInt
	KindBool
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "none"
}

// Value is a tagged template value.
type Value struct {
	kind Kind
	s    string
	i    int64
	b    bool
	list []Value
	m    map[string]Value
}

// None returns the absent value.
func None() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List returns a list value.
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Map returns a map value.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

// FromAny converts decoded JSON-like data (as produced by encoding/json or a
// config loader) into a Value. Whole floats become ints.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return None()
	case Value:
		return x
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int64:
		return Int(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return Int(int64(x))
		}
		return String(strconv.FormatFloat(x, 'f', -1, 64))
	case []string:
		items := make([]Value, len(x))
		for i, s := range x {
			items[i] = String(s)
		}
		return List(items...)
	case []any:
		items := make([]Value, len(x))
		for i, e := range x {
			items[i] = FromAny(e)
		}
		return List(items...)
	case map[string]string:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			m[k] = String(e)
		}
		return Map(m)
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, e := range x {
			m[k] = FromAny(e)
		}
		return Map(m)
	}
	return String(fmt.Sprint(v))
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNone reports whether v is absent.
func (v Value) IsNone() bool { return v.kind == KindNone }

// Str returns the string payload (empty for non-strings).
func (v Value) Str() string { return v.s }

// IntValue returns the integer payload.
func (v Value) IntValue() int64 { return v.i }

// BoolValue returns the boolean payload.
func (v Value) BoolValue() bool { return v.b }

// Items returns the list payload.
func (v Value) Items() []Value { return v.list }

// Keys returns the map keys in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Field returns a map entry.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindMap {
		return None(), false
	}
	f, ok := v.m[key]
	return f, ok
}

// Empty reports whether v is None or an empty string.
func (v Value) Empty() bool {
	return v.kind == KindNone || (v.kind == KindString && v.s == "")
}

// Truthy reports whether v counts as true in a condition.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString:
		return v.s != ""
	case KindInt:
		return v.i != 0
	case KindBool:
		return v.b
	case KindList:
		return len(v.list) > 0
	case KindMap:
		return len(v.m) > 0
	}
	return false
}

// Render returns the textual form of a scalar. Lists and maps cannot be
// rendered.
func (v Value) Render() (string, error) {
	switch v.kind {
	case KindNone:
		return "", nil
	case KindString:
		return v.s, nil
	case KindInt:
		return strconv.FormatInt(v.i, 10), nil
	case KindBool:
		return strconv.FormatBool(v.b), nil
	}
	return "", fmt.Errorf("cannot render a %s as text", v.kind)
}

// Any converts v back to plain Go data: nil, string, int64, bool, []any or
// map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Any()
		}
		return out
	}
	return nil
}

// Equal compares two values. Scalars of different kinds compare by their
// rendered text, so an attribute "3" equals the integer 3.
func (v Value) Equal(o Value) bool {
	if v.kind == o.kind {
		switch v.kind {
		case KindNone:
			return true
		case KindString:
			return v.s == o.s
		case KindInt:
			return v.i == o.i
		case KindBool:
			return v.b == o.b
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
	}
	a, errA := v.Render()
	b, errB := o.Render()
	return errA == nil && errB == nil && a == b
}

// GoString is used in debug output.
func (v Value) GoString() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.s)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.GoString()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := v.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.m[k].GoString()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	s, _ := v.Render()
	if v.kind == KindNone {
		return "none"
	}
	return s
}
