package conjunction

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kosha/koshatrack/internal/orbit"
)

// invPhi is the golden ratio conjugate used by golden-section search.
const invPhi = 0.6180339887498949

// refinePair runs Stage 2 for one surviving pair: full-force propagation of
// both objects at fine resolution, coarse minimum over the samples, then
// golden-section refinement of the closest-approach time between the
// bracketing samples. Returns nil when the refined miss distance stays above
// the operational threshold.
func (p *Pipeline) refinePair(ctx context.Context, a, b Object, window time.Duration) (*Candidate, error) {
	ephA, err := p.prop.Propagate(ctx, a.State, a.Props, window)
	if err != nil {
		return nil, fmt.Errorf("primary %s: %w", a.State.ObjectID, err)
	}
	ephB, err := p.prop.Propagate(ctx, b.State, b.Props, window)
	if err != nil {
		return nil, fmt.Errorf("secondary %s: %w", b.State.ObjectID, err)
	}

	n := len(ephA.Samples)
	if len(ephB.Samples) < n {
		n = len(ephB.Samples)
	}
	if n < 2 {
		return nil, fmt.Errorf("pair %s/%s: ephemerides too short for refinement", a.State.ObjectID, b.State.ObjectID)
	}

	// Coarse minimum over the fine samples.
	minIdx := 0
	minDist := math.Inf(1)
	for i := 0; i < n; i++ {
		d := ephA.Samples[i].Position.Sub(ephB.Samples[i].Position).Norm()
		if d < minDist {
			minDist = d
			minIdx = i
		}
	}

	// Bracket around the coarse minimum.
	lo := minIdx - 1
	if lo < 0 {
		lo = 0
	}
	hi := minIdx + 1
	if hi > n-1 {
		hi = n - 1
	}

	tcaOffset, miss, err := p.goldenSection(ephA.Samples[lo], ephB.Samples[lo], a.Props, b.Props,
		ephA.Samples[hi].Epoch.Sub(ephA.Samples[lo].Epoch))
	if err != nil {
		return nil, err
	}

	if miss >= p.cfg.Threshold {
		return nil, nil
	}

	stateA, stateB, err := p.statesAt(ephA.Samples[lo], ephB.Samples[lo], a.Props, b.Props, tcaOffset)
	if err != nil {
		return nil, err
	}

	return &Candidate{
		PrimaryID:     a.State.ObjectID,
		SecondaryID:   b.State.ObjectID,
		TCA:           stateA.Epoch,
		MissDistance:  miss,
		RelativeSpeed: stateA.Velocity.Sub(stateB.Velocity).Norm(),
		Primary:       stateA,
		Secondary:     stateB,
		PrimaryCov:    a.Covariance,
		SecondaryCov:  b.Covariance,
	}, nil
}

// goldenSection minimizes the pair separation over [0, span] measured from the
// bracketing sample states, to the configured time tolerance.
func (p *Pipeline) goldenSection(baseA, baseB orbit.StateVector, propsA, propsB orbit.PhysicalObjectProperties, span time.Duration) (time.Duration, float64, error) {
	distAt := func(dt time.Duration) (float64, error) {
		sa, sb, err := p.statesAt(baseA, baseB, propsA, propsB, dt)
		if err != nil {
			return 0, err
		}
		return sa.Position.Sub(sb.Position).Norm(), nil
	}

	lo := time.Duration(0)
	hi := span
	tol := p.cfg.RefineTolerance
	if tol <= 0 {
		tol = 100 * time.Millisecond
	}

	x1 := lo + time.Duration(float64(hi-lo)*(1-invPhi))
	x2 := lo + time.Duration(float64(hi-lo)*invPhi)
	f1, err := distAt(x1)
	if err != nil {
		return 0, 0, err
	}
	f2, err := distAt(x2)
	if err != nil {
		return 0, 0, err
	}

	for hi-lo > tol {
		if f1 < f2 {
			hi = x2
			x2, f2 = x1, f1
			x1 = lo + time.Duration(float64(hi-lo)*(1-invPhi))
			f1, err = distAt(x1)
		} else {
			lo = x1
			x1, f1 = x2, f2
			x2 = lo + time.Duration(float64(hi-lo)*invPhi)
			f2, err = distAt(x2)
		}
		if err != nil {
			return 0, 0, err
		}
	}

	mid := lo + (hi-lo)/2
	fm, err := distAt(mid)
	if err != nil {
		return 0, 0, err
	}
	return mid, fm, nil
}

// statesAt advances both bracketing sample states by dt with the full force
// model. The hop is at most two fine steps, so a short fixed-step integration
// is accurate and cheap.
func (p *Pipeline) statesAt(baseA, baseB orbit.StateVector, propsA, propsB orbit.PhysicalObjectProperties, dt time.Duration) (orbit.StateVector, orbit.StateVector, error) {
	if dt == 0 {
		return baseA, baseB, nil
	}
	sa, err := p.prop.StepFrom(baseA, propsA, dt)
	if err != nil {
		return orbit.StateVector{}, orbit.StateVector{}, err
	}
	sb, err := p.prop.StepFrom(baseB, propsB, dt)
	if err != nil {
		return orbit.StateVector{}, orbit.StateVector{}, err
	}
	return sa, sb, nil
}
