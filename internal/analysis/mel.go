// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melLinearStep = 200.0 / 3
	melMinLogHz   = 1000.0
	melMinLogMel  = melMinLogHz / melLinearStep
)

var melLogStep = math.Log(6.4) / 27

func hzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
	}
	return hz / melLinearStep
}

func melToHz(mel float64) float64 {
	if mel >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
	}
	return mel * melLinearStep
}

// melBand is one triangular filter, stored only over its non-zero bins.
type melBand struct {
	start   int
	weights []float64
}

// MelFilterbank projects power spectra onto area-normalized triangular mel
// filters spanning 0 Hz to Nyquist.
type MelFilterbank struct {
	bands []melBand
	bins  int
}

// NewMelFilterbank builds nMels filters for spectra of an fftSize-point FFT
// at sampleRate.
func NewMelFilterbank(sampleRate float64, fftSize, nMels int) *MelFilterbank {
	bins := fftSize/2 + 1
	fftFreqs := make([]float64, bins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * sampleRate / float64(fftSize)
	}

	// nMels+2 edge frequencies, evenly spaced in mels.
	edges := make([]float64, nMels+2)
	floats.Span(edges, hzToMel(0), hzToMel(sampleRate/2))
	for i, m := range edges {
		edges[i] = melToHz(m)
	}

	fb := &MelFilterbank{bands: make([]melBand, nMels), bins: bins}
	for i := range nMels {
		lo, center, hi := edges[i], edges[i+1], edges[i+2]
		norm := 2 / (hi - lo)

		start, end := -1, -1
		row := make([]float64, bins)
		for k, f := range fftFreqs {
			lower := (f - lo) / (center - lo)
			upper := (hi - f) / (hi - center)
			w := math.Max(0, math.Min(lower, upper))
			if w > 0 {
				if start < 0 {
					start = k
				}
				end = k
				row[k] = w * norm
			}
		}
		if start < 0 {
			continue
		}
		fb.bands[i] = melBand{start: start, weights: row[start : end+1]}
	}
	return fb
}

// Bands returns the number of mel bands.
func (fb *MelFilterbank) Bands() int { return len(fb.bands) }

// Apply projects one power spectrum into dst, which must hold Bands() values.
func (fb *MelFilterbank) Apply(dst, power []float64) {
	for i, band := range fb.bands {
		if len(band.weights) == 0 {
			dst[i] = 0
			continue
		}
		dst[i] = floats.Dot(band.weights, power[band.start:band.start+len(band.weights)])
	}
}

// PowerToDB converts a power matrix to decibels in place, relative to a
// reference power of 1. Values are floored at amin and clipped to topDB
// below the overall peak.
func PowerToDB(s [][]float64, amin, topDB float64) {
	peak := math.Inf(-1)
	for _, row := range s {
		for i, v := range row {
			row[i] = 10 * math.Log10(math.Max(amin, v))
		}
		if len(row) > 0 {
			peak = math.Max(peak, floats.Max(row))
		}
	}
	if topDB <= 0 {
		return
	}
	floor := peak - topDB
	for _, row := range s {
		for i, v := range row {
			if v < floor {
				row[i] = floor
			}
		}
	}
}
