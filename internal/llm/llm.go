package llm

import (
	"context"
	"errors"
)

// Client abstracts LLM providers for paper analysis.
type Client interface {
	Analyze(ctx context.Context, input AnalyzeInput) (string, error)
}

// AnalyzeInput captures the inputs needed for paper analysis. Excerpt should
// already be truncated via TruncateExcerpt.
type AnalyzeInput struct {
	Title        string
	Authors      []string
	Excerpt      string
	AnalysisType string
	Parameters   map[string]any
}

// MaxExcerptChars bounds how much paper text is sent to the model.
const MaxExcerptChars = 3000

// TruncateExcerpt clips text to MaxExcerptChars without splitting runes.
func TruncateExcerpt(text string) string {
	if len(text) <= MaxExcerptChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= MaxExcerptChars {
		return text
	}
	return string(runes[:MaxExcerptChars])
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// Analyze returns ErrNotImplemented.
func (PlaceholderClient) Analyze(ctx context.Context, input AnalyzeInput) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotImplemented
}
