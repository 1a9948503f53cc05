// Package mathabi resolves the foreign-call addresses LET's function
// vocabulary needs, and provides a compile-time evaluator over the
// same table for constant folding.
//
// Reaching host libm without cgo would mean carrying a dlopen shim
// for one call per transcendental; Go's own math package covers the
// whole vocabulary, so this package resolves its function values via
// reflect.ValueOf(fn).Pointer() and calls through them via mathBridge
// (bridge_amd64.s), which swaps the Forth stack-cache registers for
// the goroutine pointer Go code requires.
//
// This is a deliberate, narrow simplification, not a general FFI
// mechanism: it relies on every table entry having a plain
// (float64)->float64 or (float64,float64)->float64 signature, for
// which Go's register-based ABI happens to place arguments and the
// return value in the same XMM0/XMM1 slots the System-V C ABI would
// use. It does not hold for arbitrary Go functions, and a callee that
// grows the goroutine stack mid-call is outside what the bridge can
// protect — recorded as an explicit, accepted limitation rather than
// a silent correctness claim.
package mathabi

import (
	"math"
	"reflect"
)

// Fn1 is a unary foreign math function's Go-side shape.
type Fn1 func(float64) float64

// Fn2 is a binary foreign math function's Go-side shape.
type Fn2 func(float64, float64) float64

// table1/table2 are the supported function vocabulary, split by
// arity.
var (
	table1 = map[string]Fn1{
		"sqrt":  math.Sqrt,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"exp":   math.Exp,
		"ln":    math.Log,
		"log":   math.Log,
		"log2":  math.Log2,
		"log10": math.Log10,
		"sinh":  math.Sinh,
		"cosh":  math.Cosh,
		"tanh":  math.Tanh,
		"asin":  math.Asin,
		"acos":      math.Acos,
		"atan":      math.Atan,
		"fabs":      math.Abs,
		"floor":     math.Floor,
		"fround":    math.Round,
		"ftruncate": math.Trunc,
	}
	table2 = map[string]Fn2{
		"atan2":     math.Atan2,
		"pow":       math.Pow,
		"hypot":     math.Hypot,
		"fmod":      math.Mod,
		"remainder": math.Remainder,
		"fmin":      math.Min,
		"fmax":      math.Max,
	}
)

// Arity reports how many arguments name takes, or 0 if it is not a
// known function.
func Arity(name string) int {
	if _, ok := table1[name]; ok {
		return 1
	}
	if _, ok := table2[name]; ok {
		return 2
	}
	return 0
}

func funcAddr(fn func()) uintptr { return reflect.ValueOf(fn).Pointer() }

// AddressOf returns the target entry point for name. Emitted callers
// load it into RAX and CallAbs through BridgeAddr, which performs the
// register swap Go code needs (see bridge_amd64.s).
func AddressOf(name string) (addr uintptr, ok bool) {
	if f, found := table1[name]; found {
		return reflect.ValueOf(f).Pointer(), true
	}
	if f, found := table2[name]; found {
		return reflect.ValueOf(f).Pointer(), true
	}
	return 0, false
}

// Call1 evaluates a unary entry directly, for constant folding at
// compile time.
func Call1(name string, x float64) (float64, bool) {
	f, ok := table1[name]
	if !ok {
		return 0, false
	}
	return f(x), true
}

// Call2 evaluates a binary entry directly, for constant folding at
// compile time.
func Call2(name string, x, y float64) (float64, bool) {
	f, ok := table2[name]
	if !ok {
		return 0, false
	}
	return f(x, y), true
}
