// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"math/cmplx"

	"bpmtag/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// workspace holds pre-allocated buffers for FFT calculations.
type workspace struct {
	input     []float64    // ...for real input samples (windowed)
	fftOutput []complex128 // ...for FFT complex output
	magnitude []float64    // ...for raw magnitude output
	window    []float64    // ...for window function coefficients
}

// Processor computes the magnitude spectrum of one frame at a time. It is not
// safe for concurrent use; give each goroutine its own Processor.
type Processor struct {
	fftSize    int
	sampleRate float64
	windowType WindowFunc
	fftObj     *fourier.FFT
	workspace  workspace
}

// NewProcessor creates a new FFT processor, pre-allocating all required
// buffers and the window coefficients.
func NewProcessor(fftSize int, sampleRate float64, windowType WindowFunc) (*Processor, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	// FFT output size for real input is N/2 + 1 complex values.
	outputSize := fftSize/2 + 1

	return &Processor{
		fftSize:    fftSize,
		sampleRate: sampleRate,
		windowType: windowType,
		fftObj:     fourier.NewFFT(fftSize),
		workspace: workspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, outputSize),
			magnitude: make([]float64, outputSize),
			window:    Window(fftSize, windowType),
		},
	}, nil
}

// Process windows the frame, runs the FFT and stores the magnitudes. Frames
// shorter than the FFT size are zero padded; longer frames are truncated.
func (p *Processor) Process(frame []float64) {
	n := len(frame)
	for i := range p.fftSize {
		if i < n {
			p.workspace.input[i] = frame[i] * p.workspace.window[i]
		} else {
			p.workspace.input[i] = 0
		}
	}

	p.fftObj.Coefficients(p.workspace.fftOutput, p.workspace.input)
	for i, c := range p.workspace.fftOutput {
		p.workspace.magnitude[i] = cmplx.Abs(c)
	}
}

// Magnitudes returns a copy of the latest magnitude spectrum.
func (p *Processor) Magnitudes() []float64 {
	out := make([]float64, len(p.workspace.magnitude))
	copy(out, p.workspace.magnitude)
	return out
}

// MagnitudesInto copies the latest magnitude spectrum into dest, which must
// hold exactly Bins() values.
func (p *Processor) MagnitudesInto(dest []float64) error {
	if len(dest) != len(p.workspace.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d", len(dest), len(p.workspace.magnitude))
	}
	copy(dest, p.workspace.magnitude)
	return nil
}

// FrequencyForBin returns the center frequency (Hz) of an FFT bin, or 0 for
// an out of range index.
func (p *Processor) FrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(p.workspace.fftOutput) {
		return 0.0
	}
	return p.fftObj.Freq(binIndex) * p.sampleRate
}

// Bins returns the number of spectrum values per frame (fftSize/2 + 1).
func (p *Processor) Bins() int { return len(p.workspace.magnitude) }

// FFTSize returns the configured FFT size (number of points).
func (p *Processor) FFTSize() int { return p.fftSize }

// SampleRate returns the configured sample rate (Hz).
func (p *Processor) SampleRate() float64 { return p.sampleRate }

// Window returns the window type the processor applies.
func (p *Processor) Window() WindowFunc { return p.windowType }
