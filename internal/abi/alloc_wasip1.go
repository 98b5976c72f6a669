//go:build wasip1

package abi

import (
	"fmt"
	"sync"
	"unsafe"
)

// memoryManager keeps a reference to every slice handed to the host so the
// Go GC does not collect memory the host is still reading or writing.
var memoryManager = struct {
	sync.Mutex
	ptrs           map[uint32][]byte
	totalAllocated int
}{
	ptrs: make(map[uint32][]byte),
}

// allocate reserves size bytes and returns their address.
// The host calls this before writing a string argument into guest memory.
//
//go:wasmexport allocate
func allocate(size uint32) uint32 {
	return Allocate(size)
}

// deallocate releases a block returned by allocate or PtrFromBytes.
//
//go:wasmexport deallocate
func deallocate(ptr uint32, size uint32) {
	Deallocate(ptr)
}

// Allocate reserves size bytes of pinned memory. A zero size returns 0.
// Panics if the allocation would exceed MaxTotalAllocations.
func Allocate(size uint32) uint32 {
	if size == 0 {
		return 0
	}

	memoryManager.Lock()
	defer memoryManager.Unlock()

	if memoryManager.totalAllocated+int(size) > MaxTotalAllocations {
		panic(fmt.Sprintf("abi: memory allocation limit exceeded (requested: %d bytes, current: %d bytes, limit: %d bytes)",
			size, memoryManager.totalAllocated, MaxTotalAllocations))
	}

	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))

	memoryManager.ptrs[ptr] = buf
	memoryManager.totalAllocated += int(size)

	return ptr
}

// Deallocate unpins ptr. Unknown pointers are ignored, so a double free is harmless.
func Deallocate(ptr uint32) {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	buf, ok := memoryManager.ptrs[ptr]
	if !ok {
		return
	}

	delete(memoryManager.ptrs, ptr)
	memoryManager.totalAllocated -= len(buf)
	if memoryManager.totalAllocated < 0 {
		memoryManager.totalAllocated = 0
	}
}

// PtrFromBytes copies data into pinned memory and returns it packed.
// The host frees it with deallocate once it has read the bytes.
func PtrFromBytes(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	size := uint32(len(data))
	ptr := Allocate(size)
	//nolint:gosec // G103: wasm linear memory offset to pointer
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), size), data)
	return PackPtrLen(ptr, size)
}

// PtrFromString is PtrFromBytes for a string.
func PtrFromString(s string) uint64 {
	return PtrFromBytes(unsafe.Slice(unsafe.StringData(s), len(s)))
}

// BytesFromPtr copies length bytes at ptr into a new slice.
func BytesFromPtr(ptr, length uint32) []byte {
	if ptr == 0 || length == 0 {
		return nil
	}
	out := make([]byte, length)
	//nolint:gosec // G103: wasm linear memory offset to pointer
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length))
	return out
}

// StringFromPtr copies length bytes at ptr into a new Go string.
func StringFromPtr(ptr, length uint32) string {
	if ptr == 0 || length == 0 {
		return ""
	}
	//nolint:gosec // G103: wasm linear memory offset to pointer
	return string(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length))
}

// StringPtr returns the address and length of s without copying.
// The caller must keep s alive until the host call returns.
func StringPtr(s string) (uint32, uint32) {
	if len(s) == 0 {
		return 0, 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.StringData(s)))), uint32(len(s))
}
