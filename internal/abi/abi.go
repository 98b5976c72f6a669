// Package abi describes how values cross the guest linear-memory boundary.
//
// Text travels as a pointer and a length. When a single value is returned,
// both are packed into one uint64: pointer in the high 32 bits, length in the
// low 32 bits. uint32 is used for both because wasm32 linear memory is
// addressed with 32-bit offsets.
package abi

import (
	"errors"
	"fmt"
)

// MaxTotalAllocations bounds the memory the guest allocator keeps pinned.
const MaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

// ErrNullPointer is returned when a packed value has a zero pointer but a non-zero length.
var ErrNullPointer = errors.New("abi: null pointer with non-zero length")

// PackPtrLen packs a pointer and length into a single uint64.
// Panics if ptr is 0 and length > 0.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return (uint64(ptr) << 32) | uint64(length)
}

// UnpackPtrLen is the inverse of PackPtrLen. It panics on a null pointer
// with a non-zero length; hosts reading untrusted values should use Unpack.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr, length, err := Unpack(packed)
	if err != nil {
		panic(fmt.Sprintf("abi: invalid unpack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return ptr, length
}

// Unpack splits a packed value, reporting ErrNullPointer instead of panicking.
func Unpack(packed uint64) (ptr, length uint32, err error) {
	ptr = uint32(packed >> 32)
	length = uint32(packed)
	if ptr == 0 && length > 0 {
		return ptr, length, ErrNullPointer
	}
	return ptr, length, nil
}
