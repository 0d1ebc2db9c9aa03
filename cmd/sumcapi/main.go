// Command sumcapi is the C ABI binding:
//
//	go build -buildmode=c-shared -o libsum.so ./cmd/sumcapi
//	go build -buildmode=c-archive -o libsum.a ./cmd/sumcapi
//
// Either mode emits a header declaring int32_t sum(int32_t a, int32_t b).
package main

// #include <stdint.h>
import "C"

import "github.com/qntx/sumx/internal/arith"

//export sum
func sum(a, b C.int32_t) C.int32_t {
	return C.int32_t(arith.Sum(int32(a), int32(b)))
}

func main() {}
