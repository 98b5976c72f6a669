//go:build wasm

package wasm

// This file documents the exports a QuestMind guest provides.
// Guests built for wasip1 implement them with //go:wasmexport
// (see cmd/questmind-wasm); the js build registers them on a global object.
//
// NOTE: uint32 is used for pointers and lengths because WebAssembly uses a 32-bit
// linear memory model. All Wasm memory addresses are represented as 32-bit integers.
// See: https://github.com/golang/go/issues/59156

// Exported functions:
//
// //go:wasmexport initialize
// func initialize()
//
// //go:wasmexport greet
// func greet(ptr, length uint32)
//
// //go:wasmexport add
// func add(a, b int32) int32
//
// //go:wasmexport process_text
// func processText(ptr, length uint32) uint64 // packed ptr<<32 | len
//
// //go:wasmexport allocate
// func allocate(size uint32) uint32
//
// //go:wasmexport deallocate
// func deallocate(ptr, size uint32)
//
// Imported from the host:
//
// //go:wasmimport host log_message
// func logMessage(level, ptr, length uint32)
