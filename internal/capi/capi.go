//go:build cgo

// Package capi calls a C implementation of the sumx addition. It pins down
// that the C ABI binding and the Go core agree on wrapping, and gives the
// benchmarks a real cgo call to measure.
package capi

/*
#include <stdint.h>

static inline int32_t sumx_add(int32_t a, int32_t b) {
    return (int32_t)((uint32_t)a + (uint32_t)b);
}
*/
// #cgo nocallback sumx_add
// #cgo noescape sumx_add
import "C"

// Sum adds a and b in C with wrapping semantics.
func Sum(a, b int32) int32 {
	return int32(C.sumx_add(C.int32_t(a), C.int32_t(b)))
}
