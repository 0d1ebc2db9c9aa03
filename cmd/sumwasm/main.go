//go:build wasip1

// Command sumwasm is the WASI binding. Build it as a reactor so the host can
// call sum after _initialize:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o sum.wasm ./cmd/sumwasm
package main

import "github.com/qntx/sumx/internal/arith"

//go:wasmexport sum
func sum(a, b int32) int32 {
	return arith.Sum(a, b)
}

// main is required by the toolchain but never runs in reactor mode.
func main() {}
