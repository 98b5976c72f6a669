package wasm

import (
	"context"
	"errors"

	contract "github.com/questmind/questmind/api/wasm"
	"github.com/questmind/questmind/internal/abi"
	"github.com/tetratelabs/wazero/api"
)

// Memory moves text in and out of a guest's linear memory.
//
// The guest owns its memory, so writes go through its allocate export and
// the host hands the block back with deallocate when the call is done.
// Reads are bounds-checked by wazero; an out-of-range read is reported as
// a MemoryAccessError instead of a panic.
type Memory struct {
	mem        api.Memory
	allocate   api.Function
	deallocate api.Function
}

// NewMemory creates a memory helper. allocate/deallocate may be missing, in
// which case only reads are possible.
func NewMemory(module api.Module) *Memory {
	return &Memory{
		mem:        module.Memory(),
		allocate:   module.ExportedFunction(contract.ExportAllocate),
		deallocate: module.ExportedFunction(contract.ExportDeallocate),
	}
}

// ReadBytes reads raw bytes from Wasm memory.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	if m.mem == nil {
		return nil, false
	}
	return m.mem.Read(ptr, length)
}

// ReadString copies length bytes at ptr into a Go string.
func (m *Memory) ReadString(ptr uint32, length uint32) (string, error) {
	if length == 0 {
		return "", nil
	}
	buf, ok := m.ReadBytes(ptr, length)
	if !ok {
		return "", &MemoryAccessError{Operation: "read", Address: ptr, Length: length, Err: errors.New("out of range")}
	}
	return string(buf), nil
}

// ReadPacked reads a string returned as a packed ptr<<32 | len value.
func (m *Memory) ReadPacked(packed uint64) (string, uint32, uint32, error) {
	ptr, length, err := abi.Unpack(packed)
	if err != nil {
		return "", ptr, length, &MemoryAccessError{Operation: "unpack", Address: ptr, Length: length, Err: err}
	}
	s, err := m.ReadString(ptr, length)
	return s, ptr, length, err
}

// WriteString allocates len(s) bytes in the guest and copies s there.
// An empty string is passed as (0, 0) without allocating.
// The caller releases the block with Free.
func (m *Memory) WriteString(ctx context.Context, s string) (uint32, uint32, error) {
	return m.WriteBytes(ctx, []byte(s))
}

// WriteBytes allocates len(data) bytes in the guest and copies data there.
func (m *Memory) WriteBytes(ctx context.Context, data []byte) (uint32, uint32, error) {
	length := uint32(len(data))
	if length == 0 {
		return 0, 0, nil
	}
	if m.allocate == nil {
		return 0, 0, &FunctionNotFoundError{FunctionName: contract.ExportAllocate}
	}

	results, err := m.allocate.Call(ctx, uint64(length))
	if err != nil {
		return 0, 0, &MemoryAccessError{Operation: "allocate", Length: length, Err: err}
	}
	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, 0, &MemoryAccessError{Operation: "allocate", Length: length, Err: errors.New("guest returned null pointer")}
	}

	if m.mem == nil || !m.mem.Write(ptr, data) {
		_ = m.Free(ctx, ptr, length)
		return 0, 0, &MemoryAccessError{Operation: "write", Address: ptr, Length: length, Err: errors.New("out of range")}
	}

	return ptr, length, nil
}

// Free returns a block to the guest allocator. Null pointers are ignored.
func (m *Memory) Free(ctx context.Context, ptr uint32, length uint32) error {
	if ptr == 0 || m.deallocate == nil {
		return nil
	}
	if _, err := m.deallocate.Call(ctx, uint64(ptr), uint64(length)); err != nil {
		return &MemoryAccessError{Operation: "deallocate", Address: ptr, Length: length, Err: err}
	}
	return nil
}
