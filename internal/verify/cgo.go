//go:build cgo

package verify

import (
	"context"

	"github.com/qntx/sumx/internal/capi"
)

// Cgo adapts the C implementation to Adder.
type Cgo struct{}

func (Cgo) Sum(_ context.Context, a, b int32) (int32, error) {
	return capi.Sum(a, b), nil
}

func init() {
	builtins = append(builtins, Builtin{"cgo", Cgo{}})
}
