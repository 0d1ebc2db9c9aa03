// Package verify runs the sum property suite against any implementation of
// Adder: the native Go function, its C counterpart or a loaded WebAssembly
// binding.
package verify

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/qntx/sumx/internal/arith"
)

// Adder is anything that can compute sum(a, b).
type Adder interface {
	Sum(ctx context.Context, a, b int32) (int32, error)
}

// Native adapts arith.Sum to Adder.
type Native struct{}

func (Native) Sum(_ context.Context, a, b int32) (int32, error) {
	return arith.Sum(a, b), nil
}

// Builtin is an in-process Adder verified by name.
type Builtin struct {
	Name  string
	Adder Adder
}

// builtins grows to include the cgo adder when cgo is available.
var builtins = []Builtin{{"native", Native{}}}

// Builtins returns the in-process adders.
func Builtins() []Builtin {
	return builtins
}

// Result is the outcome of one check.
type Result struct {
	Name   string
	Err    error
	Detail string
}

// Passed reports whether the check succeeded.
func (r Result) Passed() bool { return r.Err == nil && r.Detail == "" }

// Report collects results for one Adder.
type Report struct {
	Source   string
	Results  []Result
	Duration time.Duration
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	return len(r.Failed()) == 0
}

// Failed returns the failing checks.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Passed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// ----------------------------------------------------------------------------
// Checks
// ----------------------------------------------------------------------------

type check struct {
	name string
	run  func(ctx context.Context, a Adder) (string, error)
}

// samples covers the sign boundaries and a few ordinary values.
var samples = []int32{
	0, 1, -1, 2, -2, 5, -5, 1000, -1000,
	math.MaxInt32, math.MaxInt32 - 1, math.MinInt32, math.MinInt32 + 1,
	1 << 30, -(1 << 30),
}

var checks = []check{
	{"two-plus-two", func(ctx context.Context, a Adder) (string, error) {
		return expect(ctx, a, 2, 2, 4)
	}},
	{"negation", func(ctx context.Context, a Adder) (string, error) {
		return expect(ctx, a, -5, 5, 0)
	}},
	{"identity", func(ctx context.Context, a Adder) (string, error) {
		for _, x := range samples {
			if d, err := expect(ctx, a, x, 0, x); d != "" || err != nil {
				return d, err
			}
		}
		return "", nil
	}},
	{"commutativity", func(ctx context.Context, a Adder) (string, error) {
		for _, x := range samples {
			for _, y := range samples {
				xy, err := a.Sum(ctx, x, y)
				if err != nil {
					return "", err
				}
				yx, err := a.Sum(ctx, y, x)
				if err != nil {
					return "", err
				}
				if xy != yx {
					return fmt.Sprintf("sum(%d, %d) = %d but sum(%d, %d) = %d", x, y, xy, y, x, yx), nil
				}
			}
		}
		return "", nil
	}},
	{"wrap-on-overflow", func(ctx context.Context, a Adder) (string, error) {
		if d, err := expect(ctx, a, math.MaxInt32, 1, math.MinInt32); d != "" || err != nil {
			return d, err
		}
		return expect(ctx, a, math.MinInt32, -1, math.MaxInt32)
	}},
	{"matches-native", func(ctx context.Context, a Adder) (string, error) {
		for _, x := range samples {
			for _, y := range samples {
				if d, err := expect(ctx, a, x, y, arith.Sum(x, y)); d != "" || err != nil {
					return d, err
				}
			}
		}
		return "", nil
	}},
}

// Checks returns the names of all checks in run order.
func Checks() []string {
	names := make([]string, len(checks))
	for i, c := range checks {
		names[i] = c.name
	}
	return names
}

func expect(ctx context.Context, a Adder, x, y, want int32) (string, error) {
	got, err := a.Sum(ctx, x, y)
	if err != nil {
		return "", err
	}
	if got != want {
		return fmt.Sprintf("sum(%d, %d) = %d, want %d", x, y, got, want), nil
	}
	return "", nil
}

// Run executes every check against a. It stops early only if ctx is done.
func Run(ctx context.Context, source string, a Adder) *Report {
	start := time.Now()
	r := &Report{Source: source, Results: make([]Result, 0, len(checks))}
	for _, c := range checks {
		if err := ctx.Err(); err != nil {
			r.Results = append(r.Results, Result{Name: c.name, Err: err})
			continue
		}
		detail, err := c.run(ctx, a)
		r.Results = append(r.Results, Result{Name: c.name, Err: err, Detail: detail})
	}
	r.Duration = time.Since(start)
	return r
}
