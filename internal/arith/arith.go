// Package arith implements the int32 addition exported by every sumx binding.
//
// Sum wraps on overflow, the same as Go's int32 arithmetic and WebAssembly's
// i32.add. CheckedSum and SaturatingSum are explicit alternatives for callers
// that need a different policy; the bindings never use them.
package arith

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow reports that a+b does not fit in an int32.
var ErrOverflow = errors.New("int32 overflow")

// Sum returns a+b with two's-complement wrapping.
func Sum(a, b int32) int32 {
	return a + b
}

// Overflows reports whether the mathematical sum of a and b is outside int32.
func Overflows(a, b int32) bool {
	z := a + b
	return (z^a)&(z^b) < 0
}

// CheckedSum returns a+b, or ErrOverflow if the result would wrap.
func CheckedSum(a, b int32) (int32, error) {
	if Overflows(a, b) {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return a + b, nil
}

// SaturatingSum returns a+b clamped to [math.MinInt32, math.MaxInt32].
func SaturatingSum(a, b int32) int32 {
	if !Overflows(a, b) {
		return a + b
	}
	if a < 0 {
		return math.MinInt32
	}
	return math.MaxInt32
}

// ----------------------------------------------------------------------------
// Policy
// ----------------------------------------------------------------------------

// Policy selects how overflow is handled.
type Policy string

const (
	PolicyWrap     Policy = "wrap"
	PolicyChecked  Policy = "checked"
	PolicySaturate Policy = "saturate"
)

// Policies lists every supported policy, default first.
var Policies = []Policy{PolicyWrap, PolicyChecked, PolicySaturate}

func (p Policy) Valid() bool {
	return p == PolicyWrap || p == PolicyChecked || p == PolicySaturate
}

func (p Policy) String() string { return string(p) }

// ParsePolicy converts a name to a Policy. The empty string means PolicyWrap.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return PolicyWrap, nil
	}
	p := Policy(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid policy: %q (want wrap, checked or saturate)", s)
	}
	return p, nil
}

// Apply adds a and b under p. Only PolicyChecked can fail.
func (p Policy) Apply(a, b int32) (int32, error) {
	switch p {
	case PolicyWrap, "":
		return Sum(a, b), nil
	case PolicyChecked:
		return CheckedSum(a, b)
	case PolicySaturate:
		return SaturatingSum(a, b), nil
	default:
		return 0, fmt.Errorf("invalid policy: %q", string(p))
	}
}
