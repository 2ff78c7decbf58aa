package x86

import (
	"math"
)

// f80ToFloat64 converts an x87 extended precision value (64-bit mantissa with
// an explicit integer bit, sign and 15-bit exponent) to float64, rounding.
func f80ToFloat64(mant uint64, se uint16) float64 {
	neg := se&0x8000 != 0
	exp := int(se & 0x7fff)
	var f float64
	switch {
	case exp == 0 && mant == 0:
		f = 0
	case exp == 0x7fff:
		if mant<<1 != 0 {
			return math.NaN()
		}
		f = math.Inf(1)
	default:
		if exp == 0 {
			exp = 1
		}
		f = math.Ldexp(float64(mant), exp-16383-63)
	}
	if neg {
		f = -f
	}
	return f
}

func float64ToF80(f float64) (mant uint64, se uint16) {
	if math.Signbit(f) {
		se = 0x8000
		f = -f
	}
	switch {
	case f == 0:
		return 0, se
	case math.IsNaN(f):
		return 0xc000000000000000, se | 0x7fff
	case math.IsInf(f, 0):
		return 1 << 63, se | 0x7fff
	}
	frac, exp := math.Frexp(f)
	mant = uint64(math.Ldexp(frac, 64))
	return mant, se | uint16(exp-1+16383)
}
