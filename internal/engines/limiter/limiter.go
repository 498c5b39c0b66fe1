package limiter

import (
	"context"
	"fmt"
)

// Limiter restricts a desired replica count to what the workload may run.
type Limiter interface {
	// Limit returns the admissible replica count for desired and whether
	// desired had to be changed to get there.
	Limit(ctx context.Context, desired int32) (int32, bool)
	// Bounds returns the inclusive replica range enforced by the limiter.
	Bounds() (minReplicas, maxReplicas int32)
}

// LimiterStrategy is an enumeration of the different strategies that can be used by the Limiter
type LimiterStrategy int

// enumeration of LimiterStrategy
const (
	BoundsStrategy LimiterStrategy = iota
)

// LimiterConfig holds the replica range shared by all strategies.
type LimiterConfig struct {
	MinReplicas int32
	MaxReplicas int32
}

// Validate checks that the range is non-empty and reachable.
func (c LimiterConfig) Validate() error {
	if c.MinReplicas < 0 {
		return fmt.Errorf("minReplicas must be >= 0, got %d", c.MinReplicas)
	}
	if c.MaxReplicas < 1 {
		return fmt.Errorf("maxReplicas must be >= 1, got %d", c.MaxReplicas)
	}
	if c.MinReplicas > c.MaxReplicas {
		return fmt.Errorf("minReplicas (%d) must not exceed maxReplicas (%d)", c.MinReplicas, c.MaxReplicas)
	}
	return nil
}

// NewLimiter is a factory that creates a new Limiter based on the provided strategy
func NewLimiter(strategy LimiterStrategy, config LimiterConfig) (Limiter, error) {
	switch strategy {
	case BoundsStrategy:
		return NewBoundsLimiter(config)
	default:
		return nil, fmt.Errorf("unsupported limiter strategy: %v", strategy)
	}
}
