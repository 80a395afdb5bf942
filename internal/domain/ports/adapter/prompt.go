package adapter

import "context"

// PromptEnhancer fills in lyrics for jobs that arrive with only a style
// prompt. Best-effort: dispatch proceeds without lyrics when it fails.
type PromptEnhancer interface {
	EnhanceLyrics(ctx context.Context, stylePrompt, title string) (string, error)
}
