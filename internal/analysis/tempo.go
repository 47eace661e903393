// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"bpmtag/internal/fft"

	"gonum.org/v1/gonum/floats"
)

// TempoEstimator picks a global tempo from an onset envelope using an
// autocorrelation tempogram weighted by a log-normal tempo prior.
type TempoEstimator struct {
	sampleRate float64
	hop        int
	winLength  int       // Autocorrelation window, in frames.
	window     []float64 // Periodic Hann over winLength.
	bpms       []float64 // Tempo of each lag; bpms[0] is +Inf.
	logPrior   []float64
}

// NewTempoEstimator returns an estimator for envelopes at sampleRate/hop
// frames per second. The prior is centered on startBPM with a deviation of
// stdBPM octaves; tempos at or above maxBPM are never chosen.
func NewTempoEstimator(sampleRate float64, hop, winLength int, startBPM, stdBPM, maxBPM float64) (*TempoEstimator, error) {
	if sampleRate <= 0 || hop <= 0 {
		return nil, fmt.Errorf("sample rate and hop must be positive")
	}
	if winLength < 2 {
		return nil, fmt.Errorf("tempogram window must be at least 2 frames, got %d", winLength)
	}
	if startBPM <= 0 || stdBPM <= 0 {
		return nil, fmt.Errorf("tempo prior must be positive, got start %f std %f", startBPM, stdBPM)
	}

	te := &TempoEstimator{
		sampleRate: sampleRate,
		hop:        hop,
		winLength:  winLength,
		window:     fft.Window(winLength, fft.Hann),
		bpms:       make([]float64, winLength),
		logPrior:   make([]float64, winLength),
	}

	te.bpms[0] = math.Inf(1)
	for lag := 1; lag < winLength; lag++ {
		te.bpms[lag] = 60 * sampleRate / (float64(hop) * float64(lag))
	}
	for lag, bpm := range te.bpms {
		if bpm >= maxBPM {
			te.logPrior[lag] = math.Inf(-1)
			continue
		}
		z := (math.Log2(bpm) - math.Log2(startBPM)) / stdBPM
		te.logPrior[lag] = -0.5 * z * z
	}
	return te, nil
}

// lagToBPM returns the tempo of an autocorrelation lag in frames.
func (te *TempoEstimator) lagToBPM(lag int) float64 {
	if lag <= 0 || lag >= len(te.bpms) {
		return 0
	}
	return te.bpms[lag]
}

// Tempogram returns the local autocorrelation of the onset envelope around
// every frame, indexed [frame][lag] and normalized so each frame peaks at 1.
// The envelope is padded by half a window on each side with linear ramps down
// to zero, giving len(onset)+1 frames for an even window.
func (te *TempoEstimator) Tempogram(onset []float64) [][]float64 {
	w := te.winLength
	half := w / 2
	padded := linearRampPad(onset, half)

	numFrames := len(padded) - w + 1
	if numFrames <= 0 {
		return nil
	}

	ac := fft.NewAutocorrelator(w)
	frame := make([]float64, w)
	tg := make([][]float64, numFrames)
	for t := range numFrames {
		floats.MulTo(frame, padded[t:t+w], te.window)
		col := make([]float64, w)
		ac.Autocorrelate(col, frame)

		if peak := floats.Max(col); peak > math.SmallestNonzeroFloat64 {
			floats.Scale(1/peak, col)
		}
		tg[t] = col
	}
	return tg
}

// Estimate returns the tempo (BPM) of the whole envelope: the lag maximizing
// log1p(1e6 * mean tempogram) plus the log prior. An envelope without onsets
// has tempo 0.
func (te *TempoEstimator) Estimate(onset []float64) float64 {
	if !hasOnsets(onset) {
		return 0
	}
	tg := te.Tempogram(onset)

	mean := make([]float64, te.winLength)
	for _, col := range tg {
		floats.Add(mean, col)
	}
	if len(tg) > 0 {
		floats.Scale(1/float64(len(tg)), mean)
	}

	score := make([]float64, te.winLength)
	for lag, v := range mean {
		score[lag] = math.Log1p(1e6*v) + te.logPrior[lag]
	}
	return te.lagToBPM(floats.MaxIdx(score))
}

func hasOnsets(onset []float64) bool {
	for _, v := range onset {
		if v != 0 {
			return true
		}
	}
	return false
}

// linearRampPad pads x by n values on each side, ramping linearly from zero
// at the outer ends to the edge values.
func linearRampPad(x []float64, n int) []float64 {
	out := make([]float64, len(x)+2*n)
	copy(out[n:], x)
	if len(x) == 0 || n == 0 {
		return out
	}
	first, last := x[0], x[len(x)-1]
	for j := range n {
		out[j] = first * float64(j) / float64(n)
		out[n+len(x)+j] = last * float64(n-j-1) / float64(n)
	}
	return out
}

// RoundBPM rounds a tempo to the nearest integer, ties to even.
func RoundBPM(tempo float64) int {
	return int(math.RoundToEven(tempo))
}
