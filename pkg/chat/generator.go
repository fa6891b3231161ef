package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/askgrid/askgrid-core/pkg/models"
)

// StaticGenerator is a canned [Generator] for tests, demos, and local
// development. It does not call a model: it answers with the text of the
// best-scored retrieved passage, prefixed by a fixed preamble, or with
// [StaticGenerator.Fallback] when retrieval found nothing.
//
// Real deployments replace this with a generator wrapping an LLM
// endpoint.
type StaticGenerator struct {
	// Preamble opens every grounded answer. Defaults to
	// [DefaultPreamble] when empty.
	Preamble string

	// Fallback is returned when no passage carries text. Defaults to
	// [DefaultFallback] when empty.
	Fallback string
}

// Default StaticGenerator phrasing.
const (
	DefaultPreamble = "Based on the grid operations handbook:"
	DefaultFallback = "I could not find anything in the corpus about that. Try rephrasing the question."
)

var _ Generator = (*StaticGenerator)(nil)

// Generate composes the canned answer. The error result is always nil;
// it exists to satisfy [Generator].
func (g *StaticGenerator) Generate(_ context.Context, _ string, passages []models.Passage) (string, error) {
	best, ok := bestPassage(passages)
	if !ok {
		fallback := g.Fallback
		if fallback == "" {
			fallback = DefaultFallback
		}
		return fallback, nil
	}

	preamble := g.Preamble
	if preamble == "" {
		preamble = DefaultPreamble
	}
	return fmt.Sprintf("%s %s", preamble, strings.TrimSpace(best.Text)), nil
}

// bestPassage returns the highest-scored passage that carries text.
// Expanded passages never carry text and are skipped.
func bestPassage(passages []models.Passage) (models.Passage, bool) {
	var best models.Passage
	found := false
	for _, p := range passages {
		if p.Text == "" {
			continue
		}
		if !found || p.Score > best.Score {
			best = p
			found = true
		}
	}
	return best, found
}
