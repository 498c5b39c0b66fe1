package limiter

import (
	"context"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/custom-self-adapter/quality-adapter/internal/logging"
)

// BoundsLimiter clamps replica counts into [MinReplicas, MaxReplicas].
type BoundsLimiter struct {
	config LimiterConfig
}

// NewBoundsLimiter creates a BoundsLimiter after validating config.
func NewBoundsLimiter(config LimiterConfig) (*BoundsLimiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &BoundsLimiter{config: config}, nil
}

// Limit clamps desired into the configured range.
func (l *BoundsLimiter) Limit(ctx context.Context, desired int32) (int32, bool) {
	limited := desired
	switch {
	case desired > l.config.MaxReplicas:
		limited = l.config.MaxReplicas
	case desired < l.config.MinReplicas:
		limited = l.config.MinReplicas
	}
	if limited != desired {
		ctrl.LoggerFrom(ctx).V(logging.DEBUG).Info("Clamped replica count",
			"desired", desired, "limited", limited,
			"minReplicas", l.config.MinReplicas, "maxReplicas", l.config.MaxReplicas)
		return limited, true
	}
	return desired, false
}

func (l *BoundsLimiter) Bounds() (int32, int32) {
	return l.config.MinReplicas, l.config.MaxReplicas
}
