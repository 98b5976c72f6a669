//go:build js && wasm

// Command questmind-js is the QuestMind guest module for JavaScript hosts.
//
//	GOOS=js GOARCH=wasm go build -o questmind.wasm ./cmd/questmind-js
//
// Once loaded with wasm_exec.js the functions are available on
// globalThis.questmind: greet(name), add(a, b), processText(text) and
// initialize(). The module initializes itself once before registering them.
package main

import (
	"syscall/js"

	"github.com/questmind/questmind/internal/binding"
)

// consoleSink writes each line with console.log.
type consoleSink struct {
	console js.Value
}

func (c consoleSink) WriteLine(line string) {
	c.console.Call("log", line)
}

func main() {
	surface := binding.New(consoleSink{console: js.Global().Get("console")})
	surface.Initialize()

	exports := js.Global().Get("Object").New()

	exports.Set("initialize", js.FuncOf(func(this js.Value, args []js.Value) any {
		return surface.Initialize()
	}))

	exports.Set("greet", js.FuncOf(func(this js.Value, args []js.Value) any {
		surface.Greet(stringArg(args, 0))
		return nil
	}))

	exports.Set("add", js.FuncOf(func(this js.Value, args []js.Value) any {
		return surface.Add(int32Arg(args, 0), int32Arg(args, 1))
	}))

	processText := js.FuncOf(func(this js.Value, args []js.Value) any {
		return surface.ProcessText(stringArg(args, 0))
	})
	exports.Set("processText", processText)
	exports.Set("process_text", processText)

	js.Global().Set("questmind", exports)

	// Block so the registered functions stay callable.
	<-make(chan struct{})
}

// stringArg converts args[i] to a string the way JavaScript's String() does.
// A missing argument is the empty string.
func stringArg(args []js.Value, i int) string {
	if i >= len(args) || args[i].IsUndefined() {
		return ""
	}
	if args[i].Type() == js.TypeString {
		return args[i].String()
	}
	return js.Global().Call("String", args[i]).String()
}

// int32Arg applies JavaScript's ToInt32, which wraps like the wasm i32 type.
// A missing argument is 0.
func int32Arg(args []js.Value, i int) int32 {
	if i >= len(args) {
		return 0
	}
	v := args[i]
	if v.Type() != js.TypeNumber {
		v = js.Global().Call("Number", v)
	}
	return binding.ToInt32(v.Float())
}
