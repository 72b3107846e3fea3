// Package ai provides text-generation clients for quiz generation.
// Providers are consumed through a single-method Client interface so
// the quiz layer never sees provider-specific wire formats.
package ai

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

var (
	// ErrMissingAPIKey is returned when a client is built without
	// credentials.
	ErrMissingAPIKey = errors.New("ai: missing API key")

	// ErrEmptyResponse is returned when the provider answers without
	// any generated text.
	ErrEmptyResponse = errors.New("ai: provider returned no text")
)

// Client generates text from a prompt.
type Client interface {
	// GenerateText sends prompt to the provider and returns the raw
	// generated text.
	GenerateText(ctx context.Context, prompt string) (string, error)

	// Validate checks that the client is usable (credentials present).
	Validate(ctx context.Context) error
}

// Throttled wraps a Client with a token-bucket rate limit. Calls block
// until the limiter grants a slot or the context expires.
type Throttled struct {
	inner   Client
	limiter *rate.Limiter
}

// Throttle limits c to limit requests per second with the given burst.
func Throttle(c Client, limit rate.Limit, burst int) *Throttled {
	return &Throttled{inner: c, limiter: rate.NewLimiter(limit, burst)}
}

func (t *Throttled) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.inner.GenerateText(ctx, prompt)
}

func (t *Throttled) Validate(ctx context.Context) error {
	return t.inner.Validate(ctx)
}
