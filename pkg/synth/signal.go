// SPDX-License-Identifier: MIT

// Package synth generates deterministic test signals: tones, chords and
// click tracks, and writes them as WAV files.
package synth

import "math"

// Sine returns n samples of a sine wave at freq Hz with the given amplitude.
func Sine(n int, sampleRate, freq, amp float64) []float64 {
	buffer := make([]float64, n)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amp * math.Sin(2*math.Pi*freq*t)
	}
	return buffer
}

// Chord returns n samples of equal-amplitude sines at freqs, scaled so the
// peak never exceeds amp.
func Chord(n int, sampleRate float64, freqs []float64, amp float64) []float64 {
	buffer := make([]float64, n)
	if len(freqs) == 0 {
		return buffer
	}
	scale := amp / float64(len(freqs))
	for _, f := range freqs {
		for i := range buffer {
			t := float64(i) / sampleRate
			buffer[i] += scale * math.Sin(2*math.Pi*f*t)
		}
	}
	return buffer
}

// ClickTrack returns n samples with a short decaying 1 kHz burst on every
// beat at bpm, the first one at sample 0.
func ClickTrack(n int, sampleRate, bpm float64) []float64 {
	const (
		clickFreq = 1000.0
		clickLen  = 0.03 // seconds
		decay     = 150.0
	)
	buffer := make([]float64, n)
	if bpm <= 0 {
		return buffer
	}
	period := 60 / bpm * sampleRate
	burst := int(clickLen * sampleRate)
	for beat := 0; ; beat++ {
		start := int(math.Round(float64(beat) * period))
		if start >= n {
			break
		}
		for j := 0; j < burst && start+j < n; j++ {
			t := float64(j) / sampleRate
			buffer[start+j] = 0.9 * math.Exp(-decay*t) * math.Sin(2*math.Pi*clickFreq*t)
		}
	}
	return buffer
}

// Mix adds b into a sample by sample and returns a. The result has the
// length of a.
func Mix(a, b []float64) []float64 {
	for i := range a {
		if i < len(b) {
			a[i] += b[i]
		}
	}
	return a
}

// NoteFrequency returns the equal-tempered frequency of a MIDI note number
// (69 = A4 = 440 Hz).
func NoteFrequency(midi int) float64 {
	return 440 * math.Pow(2, float64(midi-69)/12)
}

// PeakIndex returns the index of the largest value in x[start:end+1], with
// the bounds clamped to x.
func PeakIndex(x []float64, start, end int) int {
	if len(x) == 0 {
		return 0
	}
	if start < 0 {
		start = 0
	}
	if end >= len(x) {
		end = len(x) - 1
	}

	peak := start
	for i := start + 1; i <= end; i++ {
		if x[i] > x[peak] {
			peak = i
		}
	}
	return peak
}
