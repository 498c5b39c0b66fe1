package replicas

import (
	"context"
	"fmt"
	"math"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/custom-self-adapter/quality-adapter/internal/engines/limiter"
	"github.com/custom-self-adapter/quality-adapter/internal/logging"
)

// Action is the kind of change a Decision asks for.
type Action string

const (
	ActionScaleOut     Action = "ScaleOut"
	ActionScaleIn      Action = "ScaleIn"
	ActionHold         Action = "Hold"
	ActionTierFallback Action = "TierFallback"
)

// Decision is the outcome of planning one cycle.
type Decision struct {
	Action  Action
	Current int32
	Desired int32
	Rate    float64
	Clamped bool
	// TierUp is only meaningful for ActionTierFallback.
	TierUp bool
}

func (d Decision) String() string {
	if d.Action == ActionTierFallback {
		return fmt.Sprintf("%s(up=%v) %d->%d rate=%.3f", d.Action, d.TierUp, d.Current, d.Desired, d.Rate)
	}
	return fmt.Sprintf("%s %d->%d rate=%.3f", d.Action, d.Current, d.Desired, d.Rate)
}

// Planner computes replica decisions within the range of its limiter.
type Planner struct {
	limiter limiter.Limiter
}

// NewPlanner creates a Planner enforcing l.
func NewPlanner(l limiter.Limiter) *Planner {
	return &Planner{limiter: l}
}

// Plan decides for a workload running current replicas under the given load
// ratio. rate must be finite and non-negative.
func (p *Planner) Plan(ctx context.Context, current int32, rate float64) (Decision, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return Decision{}, fmt.Errorf("invalid load ratio %v", rate)
	}
	if current < 0 {
		return Decision{}, fmt.Errorf("invalid current replica count %d", current)
	}

	naive := ceilReplicas(float64(current) * rate)
	desired, clamped := p.limiter.Limit(ctx, naive)
	d := Decision{Current: current, Desired: desired, Rate: rate, Clamped: clamped}

	overloaded := rate >= 1
	switch {
	case overloaded && desired > current:
		d.Action = ActionScaleOut
	case !overloaded && desired < current:
		d.Action = ActionScaleIn
	case !clamped && naive == current && !p.pinned(current, overloaded):
		d.Action = ActionHold
	default:
		d.Action = ActionTierFallback
		d.TierUp = !overloaded
	}

	ctrl.LoggerFrom(ctx).V(logging.DEBUG).Info("Planned replicas",
		"decision", d.String(), "naive", naive)
	return d, nil
}

// PlanIdle decides for a workload that observed no load at all: it shrinks to
// the minimum, or raises quality when it already runs at the minimum.
func (p *Planner) PlanIdle(ctx context.Context, current int32) Decision {
	minReplicas, _ := p.limiter.Bounds()
	d := Decision{Current: current, Desired: minReplicas}
	if minReplicas < current {
		d.Action = ActionScaleIn
	} else {
		d.Action = ActionTierFallback
		d.TierUp = true
		d.Desired = current
	}
	ctrl.LoggerFrom(ctx).V(logging.DEBUG).Info("Planned replicas for idle workload", "decision", d.String())
	return d
}

// pinned reports whether current sits on the bound the load pushes against.
func (p *Planner) pinned(current int32, overloaded bool) bool {
	minReplicas, maxReplicas := p.limiter.Bounds()
	if overloaded {
		return current >= maxReplicas
	}
	return current <= minReplicas
}

// ceilEpsilon is the relative error tolerated in a load product before it
// counts as above the next integer: 50 * 1.1 is 55.00000000000001 in float64.
const ceilEpsilon = 1e-9

func ceilReplicas(v float64) int32 {
	c := math.Ceil(v - math.Abs(v)*ceilEpsilon)
	if c >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(c)
}
