package analyzer

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// Chain tries analyzers in order and returns the first success. When all
// fail the error joins every attempt.
type Chain struct {
	analyzers []Analyzer
	logger    zerolog.Logger
}

// NewChain builds a fallback chain over analyzers.
func NewChain(logger zerolog.Logger, analyzers ...Analyzer) *Chain {
	return &Chain{
		analyzers: analyzers,
		logger:    logger.With().Str("component", "analyzer").Logger(),
	}
}

// Name lists the chained analyzers.
func (c *Chain) Name() string {
	names := make([]string, len(c.analyzers))
	for i, a := range c.analyzers {
		names[i] = a.Name()
	}
	return strings.Join(names, ">")
}

// Analyze runs each analyzer until one succeeds.
func (c *Chain) Analyze(ctx context.Context, path string) (string, error) {
	if len(c.analyzers) == 0 {
		return "", &AnalyzeError{Analyzer: "chain", Path: path, Err: ErrNoAnalyzers}
	}
	if len(c.analyzers) == 1 {
		return c.analyzers[0].Analyze(ctx, path)
	}

	var errs []error
	for i, a := range c.analyzers {
		text, err := a.Analyze(ctx, path)
		if err == nil {
			if i > 0 {
				c.logger.Info().Str("analyzer", a.Name()).Int("attempt", i+1).Msg("fallback analyzer succeeded")
			}
			return text, nil
		}
		if ctx.Err() != nil {
			return "", &AnalyzeError{Analyzer: a.Name(), Path: path, Err: ctx.Err()}
		}
		c.logger.Warn().Err(err).Str("analyzer", a.Name()).Msg("analyzer failed, trying next")
		errs = append(errs, err)
	}
	return "", &AnalyzeError{Analyzer: c.Name(), Path: path, Err: errors.Join(errs...)}
}
