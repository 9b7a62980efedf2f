// Package worldstate implements the flat predicate map that the planner
// searches over, along with the deterministic key naming rules used when
// facts and agent attributes are flattened into it.
package worldstate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// State maps predicate keys to scalar values. Values stored through Set,
// Apply or FromMap are normalised to bool, int64, float64 or string.
//
// A State is a plain map: it is not safe for concurrent mutation, and callers
// hand states across goroutines only after a Clone.
type State map[string]any

// New returns an empty State.
func New() State {
	return make(State)
}

// FromMap builds a normalised State from arbitrary values.
func FromMap(m map[string]any) State {
	s := make(State, len(m))
	for k, v := range m {
		s[k] = Normalize(v)
	}
	return s
}

// Clone returns an independent copy. Values are scalars, so a map copy is a
// deep copy.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Set stores a normalised value.
func (s State) Set(key string, value any) {
	s[key] = Normalize(value)
}

// Get returns the value for key, or nil.
func (s State) Get(key string) any {
	return s[key]
}

// Has reports whether key is present.
func (s State) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Float returns the numeric value for key. Booleans map to 0/1. Missing or
// non-numeric values report false.
func (s State) Float(key string) (float64, bool) {
	v, ok := s[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Satisfies reports whether every key in conds is present in s with an equal
// value. An empty condition set is always satisfied.
func (s State) Satisfies(conds State) bool {
	for k, want := range conds {
		got, ok := s[k]
		if !ok || !Equal(got, want) {
			return false
		}
	}
	return true
}

// Unmet counts the keys of conds that s does not satisfy.
func (s State) Unmet(conds State) int {
	n := 0
	for k, want := range conds {
		got, ok := s[k]
		if !ok || !Equal(got, want) {
			n++
		}
	}
	return n
}

// Apply returns a new State with effects overlaid on s. The receiver is not
// modified.
func (s State) Apply(effects State) State {
	out := make(State, len(s)+len(effects))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range effects {
		out[k] = Normalize(v)
	}
	return out
}

// Keys returns the keys in sorted order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key returns the canonical serialisation of s: keys sorted, each value
// tagged with its kind. Two states are the same search state iff their keys
// are byte-identical.
func (s State) Key() string {
	var b strings.Builder
	for _, k := range s.Keys() {
		b.WriteString(k)
		b.WriteByte('=')
		writeCanonical(&b, s[k])
		b.WriteByte(';')
	}
	return b.String()
}

// String renders the state for logs.
func (s State) String() string {
	if len(s) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(s))
	for _, k := range s.Keys() {
		parts = append(parts, fmt.Sprintf("%s: %v", k, s[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Normalize converts v to one of the canonical scalar kinds.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool, int64, float64, string:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Equal compares two values after normalisation. Integers and floats compare
// numerically; everything else must match in kind and value.
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)
	if a == b {
		return true
	}
	af, aNum := numeric(a)
	bf, bNum := numeric(b)
	return aNum && bNum && af == bf
}

func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch t := Normalize(v).(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

// writeCanonical encodes a value with a kind tag. Whole floats are written in
// integer form so 1 and 1.0 share a key, matching Equal.
func writeCanonical(b *strings.Builder, v any) {
	switch t := Normalize(v).(type) {
	case nil:
		b.WriteString("n:")
	case bool:
		b.WriteString("b:")
		b.WriteString(strconv.FormatBool(t))
	case int64:
		b.WriteString("i:")
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			b.WriteString("i:")
			b.WriteString(strconv.FormatInt(int64(t), 10))
			return
		}
		b.WriteString("f:")
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case string:
		b.WriteString("s:")
		b.WriteString(strconv.Quote(t))
	}
}
