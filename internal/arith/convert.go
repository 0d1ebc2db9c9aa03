package arith

import "math"

// ToInt32 converts a float64 the way JavaScript's ToInt32 does: NaN and
// infinities become 0, anything else is truncated and reduced modulo 2^32.
func ToInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Mod(math.Trunc(f), 1<<32))))
}
