package toolloop

import (
	"time"
)

// LoopConfig bounds a single loop run.
type LoopConfig struct {
	// MaxIterations is the number of model→tools cycles allowed; one more tool_use reply aborts the run.
	MaxIterations int
	// ModelTimeout applies to each model call individually. 0 disables it.
	ModelTimeout time.Duration
}

// DefaultLoopConfig creates a default loop configuration.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations: 5,
		ModelTimeout:  60 * time.Second,
	}
}

// WithMaxIterations sets the maximum number of tool calling iterations.
func (c LoopConfig) WithMaxIterations(maxIterations int) LoopConfig {
	c.MaxIterations = maxIterations
	return c
}

// WithModelTimeout sets the timeout for each model call.
func (c LoopConfig) WithModelTimeout(timeout time.Duration) LoopConfig {
	c.ModelTimeout = timeout
	return c
}
