//go:build wasip1

// Command questmind-wasm is the QuestMind guest module for WASI hosts.
//
// Build it as a reactor so the host can call exports after _initialize:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o questmind.wasm ./cmd/questmind-wasm
package main

import (
	"runtime"

	"github.com/questmind/questmind/internal/abi"
	"github.com/questmind/questmind/internal/binding"
	"github.com/questmind/questmind/pkg/protocol"
)

//go:wasmimport host log_message
func hostLogMessage(level, ptr, length uint32)

// hostSink writes each line through the host.log_message import.
type hostSink struct{}

func (hostSink) WriteLine(line string) {
	ptr, length := abi.StringPtr(line)
	hostLogMessage(uint32(protocol.LogLevelInfo), ptr, length)
	runtime.KeepAlive(line)
}

var surface = binding.New(hostSink{})

//go:wasmexport initialize
func initialize() {
	surface.Initialize()
}

//go:wasmexport greet
func greet(ptr, length uint32) {
	surface.Greet(abi.StringFromPtr(ptr, length))
}

//go:wasmexport add
func add(a, b int32) int32 {
	return surface.Add(a, b)
}

// processText returns the result packed as ptr<<32 | len.
// The host frees it with deallocate.
//
//go:wasmexport process_text
func processText(ptr, length uint32) uint64 {
	return abi.PtrFromString(surface.ProcessText(abi.StringFromPtr(ptr, length)))
}

// main is not run in a reactor module but is required by the toolchain.
func main() {}
