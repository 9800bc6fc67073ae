package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindUnset marks a slot that has been allocated but never written.
	KindUnset Kind = iota
	KindInt
	KindFloat
	KindStr
)

var kindNames = [...]string{
	KindUnset: "unset",
	KindInt:   "int",
	KindFloat: "real",
	KindStr:   "str",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is a nuPython runtime datum: an integer, a real, or a string.
//
// Values are plain structs and are copied by assignment, so a Value stored
// in one slot is never shared with another. Only the field matching kind is
// meaningful; the zero Value is the unset marker.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// FromInt returns an integer Value.
func FromInt(i int64) Value {
	return Value{kind: KindInt, i: i}
}

// FromFloat64 returns a real Value.
func FromFloat64(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

// FromString returns a string Value.
func FromString(s string) Value {
	return Value{kind: KindStr, s: s}
}

// ---------------------------------------------------------------------------
// Type checking and access
// ---------------------------------------------------------------------------

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsInt returns true if v holds an integer.
func (v Value) IsInt() bool { return v.kind == KindInt }

// IsFloat returns true if v holds a real.
func (v Value) IsFloat() bool { return v.kind == KindFloat }

// IsStr returns true if v holds a string.
func (v Value) IsStr() bool { return v.kind == KindStr }

// IsNumeric returns true for integers and reals.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// IsUnset returns true for the zero Value.
func (v Value) IsUnset() bool { return v.kind == KindUnset }

// Int64 returns the integer payload. It panics if v is not an integer.
func (v Value) Int64() int64 {
	if v.kind != KindInt {
		panic("vm: Int64 called on " + v.kind.String() + " value")
	}
	return v.i
}

// Float64 returns the real payload. It panics if v is not a real.
func (v Value) Float64() float64 {
	if v.kind != KindFloat {
		panic("vm: Float64 called on " + v.kind.String() + " value")
	}
	return v.f
}

// Str returns the string payload. It panics if v is not a string.
func (v Value) Str() string {
	if v.kind != KindStr {
		panic("vm: Str called on " + v.kind.String() + " value")
	}
	return v.s
}

// toFloat widens a numeric value for mixed arithmetic.
func (v Value) toFloat() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

// FloatFormat selects how real values are printed.
type FloatFormat int

const (
	// FloatFixed prints six decimals, like C's %f: 3.5 prints as 3.500000.
	FloatFixed FloatFormat = iota
	// FloatShortest prints the shortest text that round-trips, always with
	// a decimal point: 3.5 prints as 3.5 and 144 as 144.0.
	FloatShortest
)

// ParseFloatFormat maps a configuration name to a FloatFormat.
func ParseFloatFormat(name string) (FloatFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fixed":
		return FloatFixed, nil
	case "shortest":
		return FloatShortest, nil
	}
	return FloatFixed, fmt.Errorf("unknown float format %q (want fixed or shortest)", name)
}

func (f FloatFormat) String() string {
	if f == FloatShortest {
		return "shortest"
	}
	return "fixed"
}

// Format renders v the way print() emits it.
func (v Value) Format(ff FloatFormat) string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f, ff)
	case KindStr:
		return v.s
	}
	return "None"
}

// String renders v with the default float format.
func (v Value) String() string {
	return v.Format(FloatFixed)
}

func formatFloat(f float64, ff FloatFormat) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if ff == FloatShortest {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	return strconv.FormatFloat(f, 'f', 6, 64)
}
