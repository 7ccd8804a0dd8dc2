// Package llm provides the structured-completion capability contract used by
// the LLM fallback matcher and the hierarchical aligner.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCompletionFailed indicates the provider failed to produce a response.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrMalformedResponse indicates the provider returned output that does
	// not parse as the requested structure.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// CompletionProvider is the capability contract for structured completions.
//
// CompleteJSON sends a system and user prompt and returns the raw response
// text, which the provider constrains to a single JSON object. Implementations
// run in a low-temperature deterministic mode. Failures are recovered locally
// by callers (skip, warn, continue), never fatal to a grounding run.
type CompletionProvider interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
