package ai

import (
	"context"
	"fmt"

	"github.com/poiesic/articlevec/core"
)

// Unavailable returns the stand-in provider used until the real models are
// loaded. Every model call fails with core.ErrServiceNotReady, wrapping
// reason when one is given.
func Unavailable(reason error) AIProvider {
	err := core.ErrServiceNotReady
	if reason != nil {
		err = fmt.Errorf("%w: %w", core.ErrServiceNotReady, reason)
	}
	return &unavailable{err: err}
}

type unavailable struct {
	err error
}

var (
	_ AIProvider       = (*unavailable)(nil)
	_ Embedder         = (*unavailable)(nil)
	_ KeywordExtractor = (*unavailable)(nil)
)

func (u *unavailable) Embedder() Embedder                 { return u }
func (u *unavailable) KeywordExtractor() KeywordExtractor { return u }
func (u *unavailable) ModelVersion() string               { return "" }
func (u *unavailable) Close() error                       { return nil }
func (u *unavailable) Dimension() int                     { return 0 }

func (u *unavailable) EmbedText(context.Context, string) ([]float32, error) {
	return nil, u.err
}

func (u *unavailable) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return nil, u.err
}

func (u *unavailable) ExtractKeywords(context.Context, string, int) (core.KeywordScores, error) {
	return nil, u.err
}
