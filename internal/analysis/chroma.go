// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Pitch range folded into chroma, C1 to C8.
const (
	chromaMinHz = 32.70
	chromaMaxHz = 4186.01
)

// ChromaMapper folds spectrum bins into the 12 pitch classes.
type ChromaMapper struct {
	classOf []int // Pitch class of each bin, -1 outside the pitch range.
}

// NewChromaMapper assigns every bin of an fftSize-point spectrum at
// sampleRate to the pitch class of its nearest equal-tempered note.
func NewChromaMapper(sampleRate float64, fftSize int) *ChromaMapper {
	bins := fftSize/2 + 1
	cm := &ChromaMapper{classOf: make([]int, bins)}
	for k := range bins {
		freq := float64(k) * sampleRate / float64(fftSize)
		if freq < chromaMinHz || freq > chromaMaxHz {
			cm.classOf[k] = -1
			continue
		}
		midi := int(math.Round(12*math.Log2(freq/440) + 69))
		cm.classOf[k] = ((midi % 12) + 12) % 12
	}
	return cm
}

// Frame sums the power of one spectrum per pitch class and L1-normalizes
// the result. A silent frame stays all zero.
func (cm *ChromaMapper) Frame(power []float64) [12]float64 {
	var chroma [12]float64
	for k, pc := range cm.classOf {
		if pc < 0 || k >= len(power) {
			continue
		}
		chroma[pc] += power[k]
	}
	if sum := floats.Sum(chroma[:]); sum > math.SmallestNonzeroFloat64 {
		floats.Scale(1/sum, chroma[:])
	}
	return chroma
}

// Chromagram maps every frame of a magnitude spectrogram to chroma, using
// the squared magnitudes.
func (cm *ChromaMapper) Chromagram(mag [][]float64) [][12]float64 {
	out := make([][12]float64, len(mag))
	power := make([]float64, 0)
	for t, frame := range mag {
		power = power[:0]
		for _, v := range frame {
			power = append(power, v*v)
		}
		out[t] = cm.Frame(power)
	}
	return out
}
