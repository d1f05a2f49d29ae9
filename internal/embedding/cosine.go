package embedding

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1]. Empty,
// mismatched-length or zero-norm input yields exactly 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, aMag, bMag float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		aMag += x * x
		bMag += y * y
	}
	if aMag == 0 || bMag == 0 {
		return 0
	}

	result := dot / (math.Sqrt(aMag) * math.Sqrt(bMag))
	switch {
	case math.IsNaN(result):
		return 0
	case result > 1:
		return 1
	case result < -1:
		return -1
	}
	return result
}
