package quiz

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/codeclinic/codeclinic/pkg/ai"
)

// Generator produces question sets from scan data via an AI client.
type Generator struct {
	client ai.Client
	log    zerolog.Logger
}

// NewGenerator wraps an AI client.
func NewGenerator(client ai.Client, log zerolog.Logger) *Generator {
	return &Generator{
		client: client,
		log:    log.With().Str("component", "quiz").Logger(),
	}
}

// Available reports whether the generator has usable credentials.
func (g *Generator) Available(ctx context.Context) bool {
	return g.client.Validate(ctx) == nil
}

// Generate builds n questions from scanData. n is clamped to
// 1-MaxQuestions; zero means DefaultQuestions.
func (g *Generator) Generate(ctx context.Context, scanData string, n int) (*Set, error) {
	if err := g.client.Validate(ctx); err != nil {
		return nil, fmt.Errorf("quiz: generator unavailable: %w", err)
	}
	switch {
	case n == 0:
		n = DefaultQuestions
	case n < 1:
		n = 1
	case n > MaxQuestions:
		n = MaxQuestions
	}

	sanitized := Sanitize(scanData)
	if sanitized == "" {
		return nil, fmt.Errorf("quiz: empty scan data")
	}

	g.log.Info().Int("questions", n).Msg("generating quiz questions")

	raw, err := g.client.GenerateText(ctx, BuildPrompt(sanitized, n))
	if err != nil {
		return nil, fmt.Errorf("quiz: generate: %w", err)
	}
	exercises, err := ParseExercises(raw)
	if err != nil {
		return nil, err
	}

	g.log.Info().Int("generated", len(exercises)).Msg("quiz questions ready")
	return &Set{Exercises: exercises, TotalQuestions: len(exercises)}, nil
}
