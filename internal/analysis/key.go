// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// PitchClass is a note name without octave, C = 0 through B = 11.
type PitchClass int

const (
	C PitchClass = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

var pitchNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func (p PitchClass) String() string {
	if p < 0 || int(p) >= len(pitchNames) {
		return fmt.Sprintf("PitchClass(%d)", int(p))
	}
	return pitchNames[p]
}

// KeyFromIndex maps any integer onto the 12 pitch classes, index mod 12.
// Negative indices wrap around.
func KeyFromIndex(index int) PitchClass {
	return PitchClass(((index % 12) + 12) % 12)
}

// KeyFromTonnetz names a key from per-frame tonnetz vectors: the dimension
// with the largest sum over frames, offset by 3 pitch classes. The earliest
// dimension wins ties; no frames yields dimension 0.
func KeyFromTonnetz(frames [][TonnetzDims]float64) PitchClass {
	sum := SumTonnetz(frames)
	return KeyFromIndex(floats.MaxIdx(sum[:]) + 3)
}
