package model

import (
	"errors"
	"fmt"
	"time"
)

// FusionConfig configures hybrid search.
type FusionConfig struct {
	// K dampens the contribution of lower ranks.
	K              int           `env:"CONVOGRAPH_RRF_K" envDefault:"60" json:"k"`
	LexicalWeight  float64       `env:"CONVOGRAPH_LEXICAL_WEIGHT" envDefault:"0.5" json:"lexical_weight"`
	VectorWeight   float64       `env:"CONVOGRAPH_VECTOR_WEIGHT" envDefault:"0.5" json:"vector_weight"`
	OverFetch      int           `env:"CONVOGRAPH_OVER_FETCH" envDefault:"2" json:"over_fetch"`
	LexicalTimeout time.Duration `env:"CONVOGRAPH_LEXICAL_TIMEOUT" envDefault:"2s" json:"lexical_timeout"`
	VectorTimeout  time.Duration `env:"CONVOGRAPH_VECTOR_TIMEOUT" envDefault:"5s" json:"vector_timeout"`
}

// DefaultFusionConfig returns the default hybrid search configuration.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		K:              60,
		LexicalWeight:  0.5,
		VectorWeight:   0.5,
		OverFetch:      2,
		LexicalTimeout: 2 * time.Second,
		VectorTimeout:  5 * time.Second,
	}
}

// Weight returns the configured weight of source.
func (c FusionConfig) Weight(source Source) float64 {
	switch source {
	case SourceLexical:
		return c.LexicalWeight
	case SourceVector:
		return c.VectorWeight
	}
	return 0
}

// Validate rejects values that would invert or disable the ranking.
// K = 0 is allowed and means the default of 60.
func (c FusionConfig) Validate() error {
	var errs []error
	if c.K < 0 {
		errs = append(errs, fmt.Errorf("rrf k must not be negative, got %d", c.K))
	}
	if c.LexicalWeight < 0 || c.VectorWeight < 0 {
		errs = append(errs, fmt.Errorf("weights must not be negative, got lexical %g vector %g", c.LexicalWeight, c.VectorWeight))
	}
	if c.LexicalWeight+c.VectorWeight <= 0 {
		errs = append(errs, fmt.Errorf("at least one weight must be positive"))
	}
	if c.OverFetch < 1 {
		errs = append(errs, fmt.Errorf("over fetch must be at least 1, got %d", c.OverFetch))
	}
	if c.LexicalTimeout <= 0 || c.VectorTimeout <= 0 {
		errs = append(errs, fmt.Errorf("timeouts must be positive, got lexical %s vector %s", c.LexicalTimeout, c.VectorTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// BuildConfig configures relationship graph building.
type BuildConfig struct {
	MinSimilarity float64 `env:"CONVOGRAPH_MIN_SIMILARITY" envDefault:"0.8" json:"min_similarity"`
	MaxNeighbors  int     `env:"CONVOGRAPH_MAX_NEIGHBORS" envDefault:"20" json:"max_neighbors"`
	Workers       int     `env:"CONVOGRAPH_WORKERS" envDefault:"4" json:"workers"`
	BatchLimit    int     `env:"CONVOGRAPH_BATCH_LIMIT" envDefault:"100" json:"batch_limit"`
}

// DefaultBuildConfig returns the default relationship build configuration.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		MinSimilarity: 0.8,
		MaxNeighbors:  20,
		Workers:       4,
		BatchLimit:    100,
	}
}

// Validate checks the build configuration.
func (c BuildConfig) Validate() error {
	var errs []error
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("min similarity must be within [0,1], got %g", c.MinSimilarity))
	}
	if c.MaxNeighbors < 1 {
		errs = append(errs, fmt.Errorf("max neighbors must be at least 1, got %d", c.MaxNeighbors))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.BatchLimit < 1 {
		errs = append(errs, fmt.Errorf("batch limit must be at least 1, got %d", c.BatchLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
