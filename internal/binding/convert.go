package binding

import "math"

// ToInt32 converts a JavaScript number to int32 the way the ECMAScript
// ToInt32 operation does: NaN and infinities become 0, fractions are
// truncated toward zero, and the result is taken modulo 2^32.
func ToInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	m := math.Mod(math.Trunc(f), 1<<32)
	if m < 0 {
		m += 1 << 32
	}
	return int32(uint32(m))
}
