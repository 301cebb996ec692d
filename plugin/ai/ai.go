// Package ai provides the text-completion client used by the recommendation
// pipeline. The upstream model gives no schema guarantee: callers must treat
// the returned text as unstructured and run it through repair.
package ai

import (
	"context"

	"github.com/pkg/errors"
)

// CompletionService is the text-completion service interface.
type CompletionService interface {
	// Complete sends a prompt and returns the raw model text.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Disabled is the CompletionService used when no provider is configured.
// Every call fails, which steers the pipeline onto its deterministic
// fallback candidates.
type Disabled struct{}

func (Disabled) Complete(context.Context, string) (string, error) {
	return "", errors.New("completion provider is not configured")
}
