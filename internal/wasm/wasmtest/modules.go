// Package wasmtest holds hand-assembled Wasm modules for exercising the host
// runtime without a compiled guest.
package wasmtest

var wasmHeader = []byte{
	0x00, 0x61, 0x73, 0x6d, // Magic number: \0asm
	0x01, 0x00, 0x00, 0x00, // Version: 1
}

func module(sections ...[]byte) []byte {
	out := append([]byte{}, wasmHeader...)
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

// Empty has no sections at all.
var Empty = module()

// AddOnly exports add(i32, i32) -> i32 and nothing else.
var AddOnly = module(
	[]byte{0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f},      // type: (i32 i32) -> i32
	[]byte{0x03, 0x02, 0x01, 0x00},                                    // function: type 0
	[]byte{0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00},         // export "add"
	[]byte{0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}, // local.get 0, local.get 1, i32.add
)

// BadAdd exports add with the wrong signature: (i32) -> i32.
var BadAdd = module(
	[]byte{0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f},
	[]byte{0x03, 0x02, 0x01, 0x00},
	[]byte{0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00},
	[]byte{0x0a, 0x06, 0x01, 0x04, 0x00, 0x20, 0x00, 0x0b},
)

// Spin exports add(i32, i32) -> i32 that never returns.
var Spin = module(
	[]byte{0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f},
	[]byte{0x03, 0x02, 0x01, 0x00},
	[]byte{0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00},
	[]byte{0x0a, 0x0a, 0x01, 0x08, 0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x00, 0x0b}, // loop { br 0 }; unreachable
)

// FakeGuest implements the whole contract in a few instructions:
//
//	initialize()           log_message(1, 0, 24) with "QuestMind module loaded!" at offset 0
//	greet(ptr, len)        log_message(1, ptr, len), i.e. echoes the name
//	add(a, b)              i32.add
//	process_text(ptr, len) returns its input packed as ptr<<32 | len
//	allocate(size)         bump allocator starting at 1024
//	deallocate(ptr, size)  no-op
var FakeGuest = fakeGuest(typeAdd, []byte{0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b})

// FakeGuestBadAdd is FakeGuest with add exported as (i32) -> i32.
var FakeGuestBadAdd = fakeGuest(typeUnary, []byte{0x00, 0x20, 0x00, 0x20, 0x00, 0x6a, 0x0b})

// FakeGuestSpin is FakeGuest whose add never returns.
var FakeGuestSpin = fakeGuest(typeAdd, []byte{0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x00, 0x0b})

// Type indices in the fake guest's type section.
const (
	typeAdd   = 0x03 // (i32 i32) -> i32
	typeUnary = 0x05 // (i32) -> i32
)

// section prefixes payload with its id and size. Payloads stay under 128 bytes,
// so the size is a single LEB128 byte.
func section(id byte, payload []byte) []byte {
	return append([]byte{id, byte(len(payload))}, payload...)
}

func fakeGuest(addType byte, addBody []byte) []byte {
	bodies := [][]byte{
		// initialize
		{0x00, 0x41, 0x01, 0x41, 0x00, 0x41, 0x18, 0x10, 0x00, 0x0b},
		// greet
		{0x00, 0x41, 0x01, 0x20, 0x00, 0x20, 0x01, 0x10, 0x00, 0x0b},
		addBody,
		// process_text
		{0x00, 0x20, 0x00, 0xad, 0x42, 0x20, 0x86, 0x20, 0x01, 0xad, 0x84, 0x0b},
		// allocate
		{0x00, 0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x0b},
		// deallocate
		{0x00, 0x0b},
	}
	code := []byte{byte(len(bodies))}
	for _, body := range bodies {
		code = append(code, byte(len(body)))
		code = append(code, body...)
	}

	return module(
		// type section: 6 types
		section(0x01, []byte{
			0x06,
			0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x00, // 0: (i32 i32 i32) -> ()
			0x60, 0x00, 0x00, // 1: () -> ()
			0x60, 0x02, 0x7f, 0x7f, 0x00, // 2: (i32 i32) -> ()
			0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // 3: (i32 i32) -> i32
			0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e, // 4: (i32 i32) -> i64
			0x60, 0x01, 0x7f, 0x01, 0x7f, // 5: (i32) -> i32
		}),
		// import section: host.log_message, type 0
		section(0x02, []byte{
			0x01,
			0x04, 'h', 'o', 's', 't',
			0x0b, 'l', 'o', 'g', '_', 'm', 'e', 's', 's', 'a', 'g', 'e',
			0x00, 0x00,
		}),
		// function section: initialize, greet, add, process_text, allocate, deallocate
		section(0x03, []byte{0x06, 0x01, 0x02, addType, 0x04, 0x05, 0x02}),
		// memory section: 1 page
		section(0x05, []byte{0x01, 0x00, 0x01}),
		// global section: mutable i32 = 1024
		section(0x06, []byte{0x01, 0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b}),
		// export section
		section(0x07, []byte{
			0x07,
			0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
			0x0a, 'i', 'n', 'i', 't', 'i', 'a', 'l', 'i', 'z', 'e', 0x00, 0x01,
			0x05, 'g', 'r', 'e', 'e', 't', 0x00, 0x02,
			0x03, 'a', 'd', 'd', 0x00, 0x03,
			0x0c, 'p', 'r', 'o', 'c', 'e', 's', 's', '_', 't', 'e', 'x', 't', 0x00, 0x04,
			0x08, 'a', 'l', 'l', 'o', 'c', 'a', 't', 'e', 0x00, 0x05,
			0x0a, 'd', 'e', 'a', 'l', 'l', 'o', 'c', 'a', 't', 'e', 0x00, 0x06,
		}),
		section(0x0a, code),
		// data section: "QuestMind module loaded!" at offset 0
		section(0x0b, append([]byte{0x01, 0x00, 0x41, 0x00, 0x0b, 0x18}, "QuestMind module loaded!"...)),
	)
}
