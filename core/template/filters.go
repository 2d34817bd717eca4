package template

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gedex/inflector"
	"github.com/surgebase/porter2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// filterFunc transforms a value. args are the already evaluated arguments.
type filterFunc func(in Value, args []Value) (Value, error)

var filters map[string]filterFunc

func init() {
	filters = map[string]filterFunc{
		"lower":       stringFilter(func(s string) string { return cases.Lower(language.Und).String(s) }),
		"upper":       stringFilter(func(s string) string { return cases.Upper(language.Und).String(s) }),
		"title":       stringFilter(func(s string) string { return cases.Title(language.Und).String(s) }),
		"capitalize":  stringFilter(capitalize),
		"squeeze":     stringFilter(func(s string) string { return strings.Join(strings.Fields(s), " ") }),
		"basename":    stringFilter(filepath.Base),
		"noext":       stringFilter(func(s string) string { return strings.TrimSuffix(s, filepath.Ext(s)) }),
		"stem":        stringFilter(porter2.Stem),
		"plural":      stringFilter(inflector.Pluralize),
		"singular":    stringFilter(inflector.Singularize),
		"trim":        trim,
		"first":       first,
		"last":        last,
		"tokenize":    tokenize,
		"join":        join,
		"count":       count,
		"eq":          compare(func(a, b Value) bool { return a.Equal(b) }),
		"ne":          compare(func(a, b Value) bool { return !a.Equal(b) }),
		"gt":          ordered(func(a, b int64) bool { return a > b }),
		"lt":          ordered(func(a, b int64) bool { return a < b }),
		"gte":         ordered(func(a, b int64) bool { return a >= b }),
		"lte":         ordered(func(a, b int64) bool { return a <= b }),
		"int":         toInt,
		"str":         toStr,
		"range":       intRange,
		"plus":        arithmetic(func(a, b int64) (int64, error) { return a + b, nil }),
		"minus":       arithmetic(func(a, b int64) (int64, error) { return a - b, nil }),
		"multiply":    arithmetic(func(a, b int64) (int64, error) { return a * b, nil }),
		"divide":      arithmetic(divide),
		"mod":         arithmetic(modulo),
		"replace":     replace,
		"starts_with": stringTest(strings.HasPrefix),
		"ends_with":   stringTest(strings.HasSuffix),
		"default":     defaultValue,
	}
}

// Filters returns the names of all known filters, sorted.
func Filters() []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func arity(args []Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("expects %d argument(s), got %d", n, len(args))
	}
	return nil
}

func wantString(v Value) (string, error) {
	if v.Kind() != KindString {
		return "", fmt.Errorf("expects a string, got %s", v.Kind())
	}
	return v.Str(), nil
}

func wantInt(v Value) (int64, error) {
	if v.Kind() != KindInt {
		return 0, fmt.Errorf("expects an integer, got %s", v.Kind())
	}
	return v.IntValue(), nil
}

// stringFilter lifts a string function. None passes through unchanged so
// optional values stay absent.
func stringFilter(fn func(string) string) filterFunc {
	return func(in Value, args []Value) (Value, error) {
		if err := arity(args, 0); err != nil {
			return None(), err
		}
		if in.IsNone() {
			return in, nil
		}
		s, err := wantString(in)
		if err != nil {
			return None(), err
		}
		return String(fn(s)), nil
	}
}

func stringTest(fn func(s, affix string) bool) filterFunc {
	return func(in Value, args []Value) (Value, error) {
		if err := arity(args, 1); err != nil {
			return None(), err
		}
		s, err := wantString(in)
		if err != nil {
			return None(), err
		}
		affix, err := wantString(args[0])
		if err != nil {
			return None(), err
		}
		return Bool(fn(s, affix)), nil
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func trim(in Value, args []Value) (Value, error) {
	if len(args) > 1 {
		return None(), arity(args, 1)
	}
	if in.IsNone() {
		return in, nil
	}
	s, err := wantString(in)
	if err != nil {
		return None(), err
	}
	if len(args) == 1 {
		cutset, err := wantString(args[0])
		if err != nil {
			return None(), err
		}
		return String(strings.Trim(s, cutset)), nil
	}
	return String(strings.TrimSpace(s)), nil
}

func first(in Value, args []Value) (Value, error) {
	if err := arity(args, 0); err != nil {
		return None(), err
	}
	switch in.Kind() {
	case KindNone:
		return in, nil
	case KindList:
		if len(in.Items()) == 0 {
			return None(), nil
		}
		return in.Items()[0], nil
	case KindString:
		r, size := utf8.DecodeRuneInString(in.Str())
		if size == 0 {
			return None(), nil
		}
		return String(string(r)), nil
	}
	return None(), fmt.Errorf("expects a list or string, got %s", in.Kind())
}

func last(in Value, args []Value) (Value, error) {
	if err := arity(args, 0); err != nil {
		return None(), err
	}
	switch in.Kind() {
	case KindNone:
		return in, nil
	case KindList:
		items := in.Items()
		if len(items) == 0 {
			return None(), nil
		}
		return items[len(items)-1], nil
	case KindString:
		r, size := utf8.DecodeLastRuneInString(in.Str())
		if size == 0 {
			return None(), nil
		}
		return String(string(r)), nil
	}
	return None(), fmt.Errorf("expects a list or string, got %s", in.Kind())
}

// tokenize splits on whitespace runs, or on the given separator.
func tokenize(in Value, args []Value) (Value, error) {
	if len(args) > 1 {
		return None(), arity(args, 1)
	}
	if in.IsNone() {
		return List(), nil
	}
	s, err := wantString(in)
	if err != nil {
		return None(), err
	}
	var parts []string
	if len(args) == 1 {
		sep, err := wantString(args[0])
		if err != nil {
			return None(), err
		}
		for _, p := range strings.Split(s, sep) {
			if p != "" {
				parts = append(parts, p)
			}
		}
	} else {
		parts = strings.Fields(s)
	}
	items := make([]Value, len(parts))
	for i, p := range parts {
		items[i] = String(p)
	}
	return List(items...), nil
}

func join(in Value, args []Value) (Value, error) {
	if len(args) > 1 {
		return None(), arity(args, 1)
	}
	if in.Kind() != KindList {
		return None(), fmt.Errorf("expects a list, got %s", in.Kind())
	}
	sep := ""
	if len(args) == 1 {
		var err error
		if sep, err = wantString(args[0]); err != nil {
			return None(), err
		}
	}
	parts := make([]string, len(in.Items()))
	for i, item := range in.Items() {
		s, err := item.Render()
		if err != nil {
			return None(), err
		}
		parts[i] = s
	}
	return String(strings.Join(parts, sep)), nil
}

func count(in Value, args []Value) (Value, error) {
	if err := arity(args, 0); err != nil {
		return None(), err
	}
	switch in.Kind() {
	case KindNone:
		return Int(0), nil
	case KindString:
		return Int(int64(utf8.RuneCountInString(in.Str()))), nil
	case KindList:
		return Int(int64(len(in.Items()))), nil
	case KindMap:
		return Int(int64(len(in.Keys()))), nil
	}
	return None(), fmt.Errorf("expects a string, list or map, got %s", in.Kind())
}

func compare(fn func(a, b Value) bool) filterFunc {
	return func(in Value, args []Value) (Value, error) {
		if err := arity(args, 1); err != nil {
			return None(), err
		}
		return Bool(fn(in, args[0])), nil
	}
}

func ordered(fn func(a, b int64) bool) filterFunc {
	return func(in Value, args []Value) (Value, error) {
		if err := arity(args, 1); err != nil {
			return None(), err
		}
		a, err := wantInt(in)
		if err != nil {
			return None(), err
		}
		b, err := wantInt(args[0])
		if err != nil {
			return None(), err
		}
		return Bool(fn(a, b)), nil
	}
}

func arithmetic(fn func(a, b int64) (int64, error)) filterFunc {
	return func(in Value, args []Value) (Value, error) {
		if err := arity(args, 1); err != nil {
			return None(), err
		}
		a, err := wantInt(in)
		if err != nil {
			return None(), err
		}
		b, err := wantInt(args[0])
		if err != nil {
			return None(), err
		}
		out, err := fn(a, b)
		if err != nil {
			return None(), err
		}
		return Int(out), nil
	}
}

func divide(a, b int64) (int64, error) {
	if b == 0 {
		return 0, fmt.Errorf("division by zero")
	}
	return a / b, nil
}

func modulo(a, b int64) (int64, error) {
	if b == 0 {
		return 0, fmt.Errorf("division by zero")
	}
	return a % b, nil
}

func toInt(in Value, args []Value) (Value, error) {
	if err := arity(args, 0); err != nil {
		return None(), err
	}
	switch in.Kind() {
	case KindInt:
		return in, nil
	case KindBool:
		if in.BoolValue() {
			return Int(1), nil
		}
		return Int(0), nil
	case KindString:
		i, err := strconv.ParseInt(strings.TrimSpace(in.Str()), 10, 64)
		if err != nil {
			return None(), fmt.Errorf("not an integer: %q", in.Str())
		}
		return Int(i), nil
	}
	return None(), fmt.Errorf("cannot convert %s to an integer", in.Kind())
}

func toStr(in Value, args []Value) (Value, error) {
	if err := arity(args, 0); err != nil {
		return None(), err
	}
	s, err := in.Render()
	if err != nil {
		return None(), err
	}
	return String(s), nil
}

// MaxRange is the largest n the range filter expands.
const MaxRange = 1 << 16

// intRange expands n to the list 1..=n.
func intRange(in Value, args []Value) (Value, error) {
	if err := arity(args, 0); err != nil {
		return None(), err
	}
	n, err := wantInt(in)
	if err != nil {
		return None(), err
	}
	if n > MaxRange {
		return None(), fmt.Errorf("range of %d exceeds the limit of %d", n, MaxRange)
	}
	items := make([]Value, 0, max(n, 0))
	for i := int64(1); i <= n; i++ {
		items = append(items, Int(i))
	}
	return List(items...), nil
}

func replace(in Value, args []Value) (Value, error) {
	if err := arity(args, 2); err != nil {
		return None(), err
	}
	s, err := wantString(in)
	if err != nil {
		return None(), err
	}
	from, err := wantString(args[0])
	if err != nil {
		return None(), err
	}
	to, err := wantString(args[1])
	if err != nil {
		return None(), err
	}
	return String(strings.ReplaceAll(s, from, to)), nil
}

// defaultValue substitutes its argument for None or the empty string.
func defaultValue(in Value, args []Value) (Value, error) {
	if err := arity(args, 1); err != nil {
		return None(), err
	}
	if in.Empty() {
		return args[0], nil
	}
	return in, nil
}
