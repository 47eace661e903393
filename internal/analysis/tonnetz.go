// SPDX-License-Identifier: MIT
package analysis

import "math"

// TonnetzDims is the size of the tonal centroid vector.
const TonnetzDims = 6

// tonnetzBasis[d][pc] projects pitch class pc onto dimension d: the circle of
// fifths (sin, cos), minor thirds (sin, cos) and major thirds (sin, cos, half
// radius).
var tonnetzBasis = func() [TonnetzDims][12]float64 {
	var basis [TonnetzDims][12]float64
	for pc := range 12 {
		l := float64(pc)
		basis[0][pc] = math.Sin(l * 7 * math.Pi / 6)
		basis[1][pc] = math.Cos(l * 7 * math.Pi / 6)
		basis[2][pc] = math.Sin(l * 3 * math.Pi / 2)
		basis[3][pc] = math.Cos(l * 3 * math.Pi / 2)
		basis[4][pc] = 0.5 * math.Sin(l*2*math.Pi/3)
		basis[5][pc] = 0.5 * math.Cos(l*2*math.Pi/3)
	}
	return basis
}()

// Tonnetz projects each normalized chroma frame onto the tonal centroid space.
func Tonnetz(chroma [][12]float64) [][TonnetzDims]float64 {
	out := make([][TonnetzDims]float64, len(chroma))
	for t, c := range chroma {
		for d := range TonnetzDims {
			var v float64
			for pc, w := range c {
				v += tonnetzBasis[d][pc] * w
			}
			out[t][d] = v
		}
	}
	return out
}

// SumTonnetz sums every dimension across frames.
func SumTonnetz(frames [][TonnetzDims]float64) [TonnetzDims]float64 {
	var sum [TonnetzDims]float64
	for _, f := range frames {
		for d, v := range f {
			sum[d] += v
		}
	}
	return sum
}
