// SPDX-License-Identifier: MIT
package analysis

import (
	"bpmtag/internal/fft"
)

const (
	powerFloor = 1e-10
	dynamicDB  = 80.0
)

// OnsetStrength computes the spectral-flux onset envelope of a power
// spectrogram: the log-power mel spectrum is differenced along time, half-wave
// rectified and averaged over bands. The result has one value per frame,
// shifted so that onsets line up with centered frames.
func OnsetStrength(power [][]float64, fb *MelFilterbank, fftSize, hop int) []float64 {
	numFrames := len(power)
	onset := make([]float64, numFrames)
	if numFrames < 2 {
		return onset
	}

	mel := make([][]float64, numFrames)
	for t, frame := range power {
		mel[t] = make([]float64, fb.Bands())
		fb.Apply(mel[t], frame)
	}
	PowerToDB(mel, powerFloor, dynamicDB)

	// One frame for the difference, plus the half-window centering offset.
	offset := 1 + fftSize/(2*hop)
	for t := 1; t < numFrames; t++ {
		dst := t - 1 + offset
		if dst >= numFrames {
			break
		}
		var sum float64
		for m, v := range mel[t] {
			if d := v - mel[t-1][m]; d > 0 {
				sum += d
			}
		}
		onset[dst] = sum / float64(fb.Bands())
	}
	return onset
}

// OnsetStrengthFromSpectrogram is OnsetStrength over a magnitude spectrogram.
func OnsetStrengthFromSpectrogram(spec *fft.Spectrogram, fb *MelFilterbank) []float64 {
	return OnsetStrength(spec.Power(2), fb, spec.FFTSize, spec.Hop)
}
