//go:build js && wasm

// Command sumjs is the JavaScript binding. It installs a global sum(a, b)
// function and then blocks so the Go runtime stays alive for callers.
package main

import (
	"syscall/js"

	"github.com/qntx/sumx/internal/arith"
)

func main() {
	js.Global().Set("sum", js.FuncOf(sum))
	select {}
}

// sum converts both arguments as x|0 would: ToNumber, then ToInt32.
// Missing arguments are undefined, which converts to 0.
func sum(_ js.Value, args []js.Value) any {
	var a, b int32
	if len(args) > 0 {
		a = toInt32(args[0])
	}
	if len(args) > 1 {
		b = toInt32(args[1])
	}
	return arith.Sum(a, b)
}

var number = js.Global().Get("Number")

func toInt32(v js.Value) int32 {
	return arith.ToInt32(number.Invoke(v).Float())
}
