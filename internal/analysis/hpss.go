// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"slices"
)

// HPSS splits a magnitude spectrogram, indexed [frame][bin], into harmonic
// and percussive parts. Harmonic energy is sustained in time, so it survives
// a median filter along frames; percussive energy is broadband, so it survives
// a median filter along bins. The two filtered spectrograms build soft masks
// H^p / (H^p + P^p) and P^p / (H^p + P^p) that are applied to the input.
// Cells where both filtered values are zero go to neither part.
func HPSS(spec [][]float64, kernel int, power float64) (harmonic, percussive [][]float64, err error) {
	if kernel <= 0 {
		return nil, nil, fmt.Errorf("hpss kernel must be positive, got %d", kernel)
	}
	if len(spec) == 0 {
		return nil, nil, nil
	}

	h := medianFilterTime(spec, kernel)
	p := medianFilterFreq(spec, kernel)

	harmonic = make([][]float64, len(spec))
	percussive = make([][]float64, len(spec))
	for t, frame := range spec {
		harmonic[t] = make([]float64, len(frame))
		percussive[t] = make([]float64, len(frame))
		for k, v := range frame {
			harmonic[t][k] = v * softMask(h[t][k], p[t][k], power)
			percussive[t][k] = v * softMask(p[t][k], h[t][k], power)
		}
	}
	return harmonic, percussive, nil
}

// softMask returns x^p / (x^p + ref^p), or 0 when both are zero.
func softMask(x, ref, power float64) float64 {
	z := math.Max(x, ref)
	if z < math.SmallestNonzeroFloat64 {
		return 0
	}
	mx := math.Pow(x/z, power)
	mr := math.Pow(ref/z, power)
	return mx / (mx + mr)
}

func medianFilterTime(spec [][]float64, kernel int) [][]float64 {
	numFrames, numBins := len(spec), len(spec[0])
	out := newMatrix(numFrames, numBins)
	win := make([]float64, kernel)
	half := kernel / 2
	for k := range numBins {
		for t := range numFrames {
			for j := range kernel {
				win[j] = spec[reflectIndex(t-half+j, numFrames)][k]
			}
			out[t][k] = median(win)
		}
	}
	return out
}

func medianFilterFreq(spec [][]float64, kernel int) [][]float64 {
	numFrames, numBins := len(spec), len(spec[0])
	out := newMatrix(numFrames, numBins)
	win := make([]float64, kernel)
	half := kernel / 2
	for t, frame := range spec {
		for k := range numBins {
			for j := range kernel {
				win[j] = frame[reflectIndex(k-half+j, numBins)]
			}
			out[t][k] = median(win)
		}
	}
	return out
}

// median sorts win in place and returns its middle element.
func median(win []float64) float64 {
	slices.Sort(win)
	return win[len(win)/2]
}

// reflectIndex maps i into [0, n) by mirroring about the array edges,
// repeating the edge sample (d c b a | a b c d | d c b a).
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}
