// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"math"
)

// Spectrogram is a short-time magnitude spectrum, indexed [frame][bin].
type Spectrogram struct {
	Frames     [][]float64
	FFTSize    int
	Hop        int
	SampleRate float64
}

// STFT computes the magnitude spectrogram of samples with centered frames:
// the signal is zero padded by FFTSize/2 on both sides, so frame t is
// centered on sample t*hop and there are 1 + len(samples)/hop frames.
func (p *Processor) STFT(samples []float64, hop int) (*Spectrogram, error) {
	if hop <= 0 {
		return nil, fmt.Errorf("hop length must be positive, got %d", hop)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to transform")
	}

	half := p.fftSize / 2
	padded := make([]float64, len(samples)+2*half)
	copy(padded[half:], samples)

	numFrames := 1 + (len(padded)-p.fftSize)/hop
	spec := &Spectrogram{
		Frames:     make([][]float64, numFrames),
		FFTSize:    p.fftSize,
		Hop:        hop,
		SampleRate: p.sampleRate,
	}
	for t := range numFrames {
		start := t * hop
		p.Process(padded[start : start+p.fftSize])
		spec.Frames[t] = p.Magnitudes()
	}
	return spec, nil
}

// NumFrames returns the number of frames.
func (s *Spectrogram) NumFrames() int { return len(s.Frames) }

// NumBins returns the number of frequency bins per frame.
func (s *Spectrogram) NumBins() int { return s.FFTSize/2 + 1 }

// Power returns the spectrogram raised to the given exponent, as a new
// matrix with the same layout.
func (s *Spectrogram) Power(exp float64) [][]float64 {
	out := make([][]float64, len(s.Frames))
	for t, frame := range s.Frames {
		row := make([]float64, len(frame))
		for k, v := range frame {
			if exp == 2 {
				row[k] = v * v
			} else {
				row[k] = math.Pow(v, exp)
			}
		}
		out[t] = row
	}
	return out
}
