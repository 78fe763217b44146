// Package rank scores candidates against a query vector by exhaustive scan.
package rank

import (
	"cmp"
	"slices"

	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/vector"
)

// Score computes the cosine similarity of every candidate against query,
// keeps those at or above threshold and sorts them by descending score,
// ascending id on ties.
func Score(query []float32, candidates []core.Candidate, threshold float64) []core.Scored {
	kept := make([]core.Scored, 0)
	for _, c := range candidates {
		sim := vector.Cosine(query, c.Vector)
		if sim >= threshold {
			kept = append(kept, core.Scored{ID: c.ID, Score: sim})
		}
	}

	slices.SortFunc(kept, func(a, b core.Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return kept
}

// Page returns the slice [page*size, page*size+size) of scored, clipped to
// its bounds. Out-of-range pages are empty, never an error.
func Page(scored []core.Scored, page, size int) []core.Scored {
	if page < 0 || size < 1 {
		return []core.Scored{}
	}
	// page*size may overflow for absurd pages.
	if page > len(scored)/size {
		return []core.Scored{}
	}
	start := page * size
	end := min(start+size, len(scored))
	if start >= end {
		return []core.Scored{}
	}
	return scored[start:end]
}

// Rank scores candidates and returns the total match count plus one page.
func Rank(query []float32, candidates []core.Candidate, threshold float64, page, size int) (int, []core.Scored) {
	scored := Score(query, candidates, threshold)
	return len(scored), Page(scored, page, size)
}
