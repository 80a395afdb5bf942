package prompt

import (
	"context"

	"son1k-dispatch/internal/domain/ports/adapter"
)

var _ adapter.PromptEnhancer = (*NoopEnhancer)(nil)

// NoopEnhancer leaves the payload as submitted.
type NoopEnhancer struct{}

func NewNoopEnhancer() *NoopEnhancer { return &NoopEnhancer{} }

func (NoopEnhancer) EnhanceLyrics(ctx context.Context, stylePrompt, title string) (string, error) {
	return "", nil
}
