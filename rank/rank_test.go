package rank

import (
	"math/rand/v2"
	"testing"

	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomCandidates(r *rand.Rand, n, dim int) []core.Candidate {
	out := make([]core.Candidate, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}
		out[i] = core.Candidate{ID: core.ID(i + 1), Vector: v}
	}
	return out
}

func TestRank_OrderAndTieBreak(t *testing.T) {
	query := []float32{1, 0}
	candidates := []core.Candidate{
		{ID: 5, Vector: []float32{1, 1}},
		{ID: 3, Vector: []float32{1, 0}},
		{ID: 9, Vector: []float32{2, 2}}, // same direction as 5
		{ID: 1, Vector: []float32{0, 1}},
		{ID: 2, Vector: []float32{-1, 0}},
		{ID: 4, Vector: []float32{0, 0}},
	}

	total, page := Rank(query, candidates, 0, 0, 10)

	assert.Equal(t, 5, total)
	ids := make([]core.ID, len(page))
	for i, s := range page {
		ids[i] = s.ID
	}
	assert.Equal(t, []core.ID{3, 5, 9, 1, 4}, ids)
	assert.InDelta(t, 1.0, page[0].Score, 1e-12)
	assert.Equal(t, 0.0, page[3].Score)
}

func TestRank_HighThresholdEmpty(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))
	candidates := randomCandidates(r, 100, 32)
	query := randomCandidates(r, 1, 32)[0].Vector

	total, page := Rank(query, candidates, 0.99, 0, 10)
	assert.Equal(t, 0, total)
	assert.NotNil(t, page)
	assert.Empty(t, page)
}

func TestRank_ThresholdFilterCorrectness(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 10))
	for trial := 0; trial < 50; trial++ {
		candidates := randomCandidates(r, 60, 8)
		query := randomCandidates(r, 1, 8)[0].Vector
		threshold := r.Float64()*2 - 1

		total, page := Rank(query, candidates, threshold, 0, core.MaxPageSize)

		expected := 0
		for _, c := range candidates {
			if vector.Cosine(query, c.Vector) >= threshold {
				expected++
			}
		}
		assert.Equal(t, expected, total)
		for _, s := range page {
			assert.GreaterOrEqual(t, s.Score, threshold)
		}
	}
}

func TestRank_PaginationExactness(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 12))
	candidates := randomCandidates(r, 37, 4)
	query := []float32{1, 0, 0, 0}

	all := Score(query, candidates, -1)
	require.Len(t, all, 37)

	for size := 1; size <= 12; size++ {
		for page := 0; page <= 40; page++ {
			total, got := Rank(query, candidates, -1, page, size)
			want := min(size, max(0, total-page*size))
			require.Len(t, got, want, "page=%d size=%d", page, size)
			if want > 0 {
				assert.Equal(t, all[page*size].ID, got[0].ID)
			}
		}
	}
}

func TestPage_Bounds(t *testing.T) {
	scored := []core.Scored{{ID: 1}, {ID: 2}, {ID: 3}}

	assert.Len(t, Page(scored, 0, 2), 2)
	assert.Len(t, Page(scored, 1, 2), 1)
	assert.Empty(t, Page(scored, 2, 2))
	assert.Empty(t, Page(scored, -1, 2))
	assert.Empty(t, Page(scored, 0, 0))
	assert.Empty(t, Page(scored, int(^uint(0)>>1), 50))
	assert.Empty(t, Page(nil, 0, 10))
}
