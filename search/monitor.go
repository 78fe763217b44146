package search

import (
	"fmt"
	"io"

	"github.com/poiesic/articlevec/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query core.SearchQuery)
	AfterQueryVector(mode QueryMode, normalized string)
	AfterCandidateScan(candidates int)
	AfterRanking(total int, page []core.Scored)
	MissingArticle(id core.ID)
	Finish(page *core.SearchPage)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.SearchQuery) {}
func (n *noopMonitor) AfterQueryVector(_ QueryMode, _ string) {}
func (n *noopMonitor) AfterCandidateScan(_ int) {}
func (n *noopMonitor) AfterRanking(_ int, _ []core.Scored) {}
func (n *noopMonitor) MissingArticle(_ core.ID) {}
func (n *noopMonitor) Finish(_ *core.SearchPage) {}

// WriterMonitor prints each search stage to an io.Writer.
type WriterMonitor struct {
	W io.Writer
}

var _ SearchMonitor = (*WriterMonitor)(nil)

func (m *WriterMonitor) Start(q core.SearchQuery) {
	fmt.Fprintf(m.W, "query: %q page=%d size=%d threshold=%.2f\n", q.Text, q.Page, q.Size, q.Threshold)
}

func (m *WriterMonitor) AfterQueryVector(mode QueryMode, normalized string) {
	fmt.Fprintf(m.W, "embedded %q (%s mode)\n", normalized, mode)
}

func (m *WriterMonitor) AfterCandidateScan(candidates int) {
	fmt.Fprintf(m.W, "scanned %d candidates\n", candidates)
}

func (m *WriterMonitor) AfterRanking(total int, page []core.Scored) {
	fmt.Fprintf(m.W, "%d matches, %d on this page\n", total, len(page))
}

func (m *WriterMonitor) MissingArticle(id core.ID) {
	fmt.Fprintf(m.W, "article %d has a vector but no metadata\n", id)
}

func (m *WriterMonitor) Finish(page *core.SearchPage) {
	for _, r := range page.Results {
		fmt.Fprintf(m.W, "  %.4f  %d  %s\n", r.Score, r.ArticleID, r.Title)
	}
}
