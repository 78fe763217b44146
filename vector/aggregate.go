package vector

import "math"

// Weighted is one input to Aggregate.
type Weighted struct {
	Vector []float32
	Weight float64
}

// Aggregate combines vectors into one representative vector of length dim.
//
// Inputs whose length differs from dim are ignored. Negative or non-finite
// weights count as zero. Weights are normalized to sum to one; when they sum
// to zero every input gets the same weight. The weighted sum is L2-normalized
// unless its norm is zero, in which case the zero vector is returned as is.
func Aggregate(dim int, items []Weighted) []float32 {
	usable := make([]Weighted, 0, len(items))
	var total float64
	for _, it := range items {
		if len(it.Vector) != dim {
			continue
		}
		w := it.Weight
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			w = 0
		}
		usable = append(usable, Weighted{Vector: it.Vector, Weight: w})
		total += w
	}
	if len(usable) == 0 {
		return Zero(dim)
	}

	sum := make([]float64, dim)
	for _, it := range usable {
		w := 1.0 / float64(len(usable))
		if total > 0 {
			w = it.Weight / total
		}
		if w == 0 {
			continue
		}
		for i, x := range it.Vector {
			sum[i] += w * float64(x)
		}
	}

	var sumSquares float64
	for _, x := range sum {
		sumSquares += x * x
	}
	result := make([]float32, dim)
	norm := math.Sqrt(sumSquares)
	if norm == 0 || math.IsNaN(norm) {
		return result
	}
	for i, x := range sum {
		result[i] = float32(x / norm)
	}
	return result
}
