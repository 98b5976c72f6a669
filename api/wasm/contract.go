//go:build !wasm

package wasm

import (
	"slices"

	"github.com/tetratelabs/wazero/api"
)

// Names of the module boundary.
const (
	HostModule     = "host"
	HostLogMessage = "log_message"

	ExportInitialize  = "initialize"
	ExportGreet       = "greet"
	ExportAdd         = "add"
	ExportProcessText = "process_text"
	ExportAllocate    = "allocate"
	ExportDeallocate  = "deallocate"

	// ExportReactorInit is the runtime initializer of wasip1 reactor modules.
	ExportReactorInit = "_initialize"
)

// Signature is the primitive type signature of one boundary function.
type Signature struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

// Exports lists every function a guest exports, in a stable order.
var Exports = []Signature{
	{Name: ExportInitialize},
	{Name: ExportGreet, Params: []api.ValueType{i32, i32}},
	{Name: ExportAdd, Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}},
	{Name: ExportProcessText, Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i64}},
	{Name: ExportAllocate, Params: []api.ValueType{i32}, Results: []api.ValueType{i32}},
	{Name: ExportDeallocate, Params: []api.ValueType{i32, i32}},
}

// LogMessage is the signature of the host.log_message import.
var LogMessage = Signature{
	Name:   HostLogMessage,
	Params: []api.ValueType{i32, i32, i32},
}

// Lookup returns the export signature with the given name.
func Lookup(name string) (Signature, bool) {
	for _, s := range Exports {
		if s.Name == name {
			return s, true
		}
	}
	return Signature{}, false
}

// Matches reports whether def has exactly this signature's parameter and result types.
func (s Signature) Matches(def api.FunctionDefinition) bool {
	return slices.Equal(s.Params, def.ParamTypes()) && slices.Equal(s.Results, def.ResultTypes())
}

// String renders the signature in wasm text style, e.g. "add(i32, i32) -> (i32)".
func (s Signature) String() string {
	out := s.Name + "("
	for i, p := range s.Params {
		if i > 0 {
			out += ", "
		}
		out += api.ValueTypeName(p)
	}
	out += ")"
	if len(s.Results) > 0 {
		out += " -> ("
		for i, r := range s.Results {
			if i > 0 {
				out += ", "
			}
			out += api.ValueTypeName(r)
		}
		out += ")"
	}
	return out
}
