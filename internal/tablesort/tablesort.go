// Package tablesort computes sorted projections for table views. Every list
// screen shares the same tri-state column toggle: ascending, descending,
// then back to the collection's original order.
package tablesort

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

type Direction int

const (
	None Direction = iota
	Ascending
	Descending
)

// State is a table's current (column, direction) selection. A zero State
// leaves the collection untouched.
type State struct {
	Key       string
	Direction Direction
}

// NewState returns a State pre-armed with an initial column but no
// direction, so the first render keeps input order.
func NewState(initialKey string) State {
	return State{Key: initialKey}
}

// Request applies the three-way toggle for a column header click: a new
// column starts ascending, a second click flips to descending, a third
// clears the sort entirely.
func Request(state State, key string) State {
	if state.Key != key {
		return State{Key: key, Direction: Ascending}
	}
	switch state.Direction {
	case Ascending:
		return State{Key: key, Direction: Descending}
	case Descending:
		return State{}
	default:
		return State{Key: key, Direction: Ascending}
	}
}

// Indicator returns the header glyph for a column, or "" when the column is
// not the active sort key.
func Indicator(state State, key string) string {
	if state.Key != key {
		return ""
	}
	switch state.Direction {
	case Ascending:
		return " ▲"
	case Descending:
		return " ▼"
	default:
		return ""
	}
}

// Filter returns the records for which keep is true, preserving order. List
// views compose it with Sort as an explicit pipeline instead of filtering
// inside render code.
func Filter[T any](records []T, keep func(T) bool) []T {
	out := make([]T, 0, len(records))
	for _, record := range records {
		if keep(record) {
			out = append(out, record)
		}
	}
	return out
}

// Sort returns a new slice ordered by the record values at state.Key. The
// input is never mutated. With no key or direction the copy preserves input
// order. The sort is stable, records with an unresolvable value go last in
// both directions, numeric pairs compare numerically and everything else
// compares as case-insensitive text.
func Sort[T any](records []T, state State) []T {
	out := make([]T, len(records))
	copy(out, records)
	if state.Key == "" || state.Direction == None {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := Resolve(out[i], state.Key)
		b, bok := Resolve(out[j], state.Key)
		if !aok {
			return false
		}
		if !bok {
			return true
		}
		c := compare(a, b)
		if state.Direction == Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Resolve follows a dot-separated path ("category.name") through structs,
// maps and pointers. Struct fields match on json tag first, then on field
// name case-insensitively. The segment "length" on a slice, array, map or
// string resolves to its element count. A step that cannot be taken
// reports ok=false; resolution never panics.
func Resolve(record any, path string) (value any, ok bool) {
	v := reflect.ValueOf(record)
	for _, segment := range strings.Split(path, ".") {
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return nil, false
			}
			v = v.Elem()
		}
		switch v.Kind() {
		case reflect.Struct:
			f, found := structField(v, segment)
			if !found {
				return nil, false
			}
			v = f
		case reflect.Map:
			if v.Type().Key().Kind() != reflect.String {
				return nil, false
			}
			entry := v.MapIndex(reflect.ValueOf(segment))
			if entry.IsValid() {
				v = entry
				continue
			}
			if segment == "length" {
				v = reflect.ValueOf(v.Len())
				continue
			}
			return nil, false
		case reflect.Slice, reflect.Array, reflect.String:
			if segment != "length" {
				return nil, false
			}
			v = reflect.ValueOf(v.Len())
		default:
			return nil, false
		}
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

func structField(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("json")
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		if tag == name {
			return v.Field(i), true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.IsExported() && strings.EqualFold(field.Name, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// compare orders two present values: numerically when both are numeric,
// otherwise as lowercased text.
func compare(a, b any) int {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(
		strings.ToLower(stringify(a)),
		strings.ToLower(stringify(b)),
	)
}

func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
