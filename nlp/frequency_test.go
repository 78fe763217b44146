package nlp

import (
	"context"
	"testing"

	"github.com/poiesic/articlevec/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyExtractor(t *testing.T) {
	ctx := context.Background()
	ext := NewFrequencyExtractor(DefaultStopwords())

	t.Run("korean summary yields keywords", func(t *testing.T) {
		scores, err := ext.ExtractKeywords(ctx, "경제 성장률이 둔화되고 있다", 10)
		require.NoError(t, err)
		require.NotEmpty(t, scores)
		assert.Equal(t, []string{"경제", "성장률", "둔화되고"}, scores.Keywords())
		for _, ks := range scores {
			assert.Equal(t, 1.0, ks.Score)
		}
	})

	t.Run("scores relative to top term", func(t *testing.T) {
		scores, err := ext.ExtractKeywords(ctx, "금리 물가 금리 환율 금리 물가", 10)
		require.NoError(t, err)
		assert.Equal(t, core.KeywordScores{
			{Keyword: "금리", Score: 1.0},
			{Keyword: "물가", Score: 2.0 / 3.0},
			{Keyword: "환율", Score: 1.0 / 3.0},
		}, scores)
	})

	t.Run("ties keep encounter order and top k cuts", func(t *testing.T) {
		scores, err := ext.ExtractKeywords(ctx, "다섯 넷째 셋째 둘째 첫째", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"다섯", "넷째", "셋째"}, scores.Keywords())
	})

	t.Run("empty and stopword-only text", func(t *testing.T) {
		scores, err := ext.ExtractKeywords(ctx, "", 10)
		require.NoError(t, err)
		assert.NotNil(t, scores)
		assert.Empty(t, scores)

		scores, err = ext.ExtractKeywords(ctx, "있다 그리고 및 the", 10)
		require.NoError(t, err)
		assert.Empty(t, scores)
	})

	t.Run("non-positive top k rejected", func(t *testing.T) {
		_, err := ext.ExtractKeywords(ctx, "경제", 0)
		assert.ErrorIs(t, err, core.ErrInvalidTopK)
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}
