// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to size FFT frames.

A spectrogram is only computed for frame sizes that gonum's real FFT handles
efficiently, so the analysis parameters are checked with IsPowerOfTwo when the
configuration is validated, and NextPowerOfTwo pads autocorrelation buffers so
a linear (not circular) correlation fits in a single transform.

	fftSize := bitint.NextPowerOfTwo(2 * windowFrames) // 384 frames -> 1024
	ok := bitint.IsPowerOfTwo(cfg.FFTSize)

The subtraction in NextPowerOfTwo matters: bits.Len64(size-1) keeps an exact
power of two unchanged (8 -> 8) where bits.Len64(size) would double it (8 -> 16).
*/
package bitint

import "math/bits"

// Integer is the set of signed integer types the helpers accept.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// NextPowerOfTwo returns the smallest power of two >= size. Zero and negative
// sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo[T Integer](size T) T {
	if size <= 1 {
		return 1
	}
	return T(1) << bits.Len64(uint64(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. Powers of two
// have a single set bit, so n&(n-1) clears it and leaves zero.
func IsPowerOfTwo[T Integer](n T) bool {
	return n > 0 && n&(n-1) == 0
}
