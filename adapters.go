package main

import (
	"math"
	"strconv"
	"unsafe"

	"github.com/albanforth/jitforth/internal/runeio"
)

// activeAdapters is the single Interpreter whose print adapters are
// live. Only one VM runs per process (see Interpreter's doc comment),
// so a package-level target is sufficient; the cabiXxx trampolines
// that call into the goXxx functions below carry no closure context,
// so there is nowhere else to stash it.
var activeAdapters *Interpreter

// savedG holds the goroutine pointer of whatever goroutine last
// entered JIT'd code through the dispatcher. R14 is the goroutine
// register under Go's internal ABI and the TOS cache under the Forth
// convention; the cabiXxx trampolines reload R14 from here before
// calling back into Go. Written only by dispatcher glue.
var savedG uint64

func (in *Interpreter) emit(b []byte) {
	if in.output != nil {
		in.output.Write(b)
	}
}

func goEmitChar(c int64) {
	if activeAdapters != nil && activeAdapters.output != nil {
		runeio.WriteANSIRune(activeAdapters.output, rune(c))
	}
}

func goDot(n int64) {
	if activeAdapters != nil {
		activeAdapters.emit([]byte(strconv.FormatInt(n, 10) + " "))
	}
}

func goFDot(bits int64) {
	if activeAdapters != nil {
		f := math.Float64frombits(uint64(bits))
		activeAdapters.emit([]byte(strconv.FormatFloat(f, 'g', -1, 64) + " "))
	}
}

func goCR() {
	if activeAdapters != nil {
		activeAdapters.emit([]byte{'\n'})
	}
}

func goSpace() {
	if activeAdapters != nil {
		activeAdapters.emit([]byte{' '})
	}
}

func goPage() {
	if activeAdapters != nil {
		activeAdapters.emit([]byte{'\f'})
	}
}

func goCls() {
	if activeAdapters != nil {
		activeAdapters.emit([]byte("\033[2J\033[H"))
	}
}

func goPrintString(addr uintptr, length int64) {
	if activeAdapters != nil && length > 0 {
		activeAdapters.emit(unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(length)))
	}
}
