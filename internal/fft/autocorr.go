// SPDX-License-Identifier: MIT
package fft

import (
	"bpmtag/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Autocorrelator computes linear autocorrelations of fixed-length inputs
// through the FFT. It reuses its buffers and is not safe for concurrent use.
type Autocorrelator struct {
	size   int
	fftObj *fourier.FFT
	buf    []float64
	coeffs []complex128
}

// NewAutocorrelator returns an Autocorrelator for inputs of up to n samples.
// The transform is zero padded to a power of two of at least 2n-1 so the
// result is not circular.
func NewAutocorrelator(n int) *Autocorrelator {
	size := bitint.NextPowerOfTwo(2*n - 1)
	return &Autocorrelator{
		size:   size,
		fftObj: fourier.NewFFT(size),
		buf:    make([]float64, size),
		coeffs: make([]complex128, size/2+1),
	}
}

// Autocorrelate writes the autocorrelation of x at lags 0..len(dst)-1 into dst.
func (a *Autocorrelator) Autocorrelate(dst, x []float64) {
	clear(a.buf)
	copy(a.buf, x)
	a.fftObj.Coefficients(a.coeffs, a.buf)
	for i, c := range a.coeffs {
		a.coeffs[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	a.fftObj.Sequence(a.buf, a.coeffs)

	scale := 1 / float64(a.size)
	for lag := range dst {
		if lag < len(a.buf) {
			dst[lag] = a.buf[lag] * scale
		} else {
			dst[lag] = 0
		}
	}
}
