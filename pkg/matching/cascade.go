package matching

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Config contains configuration for the default cascade
type Config struct {
	OracleTimeout time.Duration // per-pair bound on the semantic oracle call (0 = client default)
}

// DefaultConfig returns default cascade configuration
func DefaultConfig() Config {
	return Config{
		OracleTimeout: 30 * time.Second,
	}
}

// Cascade tries matchers in order and keeps the first acceptance.
type Cascade struct {
	matchers []Matcher
}

// NewCascade builds a cascade over the given matchers in order.
func NewCascade(matchers ...Matcher) *Cascade {
	return &Cascade{matchers: matchers}
}

// DefaultCascade returns exact, fuzzy and phonetic matchers followed by a
// semantic matcher when an oracle is configured.
func DefaultCascade(oracle Oracle, logger ectologger.Logger, cfg Config) *Cascade {
	matchers := []Matcher{
		NewExactMatcher(),
		NewFuzzyMatcher(DefaultFuzzyConfig()),
		NewPhoneticMatcher(),
	}
	if oracle != nil {
		matchers = append(matchers, NewSemanticMatcher(oracle, logger, cfg.OracleTimeout))
	}
	return NewCascade(matchers...)
}

// Matchers returns the cascade order
func (c *Cascade) Matchers() []Matcher {
	return c.matchers
}

// Evaluate returns the first accepted match for the pair, or nil.
func (c *Cascade) Evaluate(ctx context.Context, pair Pair) *models.MatchResult {
	metrics.PairsEvaluatedTotal.Inc()

	for _, m := range c.matchers {
		if result := m.Match(ctx, pair); result != nil {
			return result
		}
	}
	return nil
}
