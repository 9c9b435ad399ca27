package conjunction

import (
	"math"
	"time"

	"github.com/kosha/koshatrack/internal/orbit"
)

// shortArcTCA estimates the time of closest approach and miss distance under
// constant relative velocity. Valid for short arcs; used only as a coarse hint
// inside the conservative screen, never as a discard criterion on its own.
func shortArcTCA(a, b orbit.StateVector) (tca float64, miss float64) {
	relR := a.Position.Sub(b.Position)
	relV := a.Velocity.Sub(b.Velocity)

	v2 := relV.Dot(relV)
	if v2 < 1e-12 {
		return 0, relR.Norm()
	}

	tca = -relR.Dot(relV) / v2
	miss = relR.Add(relV.Scale(tca)).Norm()
	return tca, miss
}

// screenPair is the Stage 1 decision for one pair: keep (true) sends it to
// numerical refinement. The screen samples both objects' two-body Keplerian
// motion at a small number of points and lower-bounds the Keplerian minimum
// by the worst-case closing distance between samples. Stage 2 refines under
// the full force model, so soundness additionally rests on ScreenThreshold
// being loose enough to absorb the perturbation drift over the window.
// False positives are acceptable and filtered by refinement.
func (p *Pipeline) screenPair(a, b Object, window time.Duration) (bool, error) {
	samples := p.cfg.CoarseSamples
	if samples < 2 {
		samples = 2
	}
	step := window / time.Duration(samples-1)

	minDist := math.Inf(1)
	maxRelSpeed := 0.0

	for i := 0; i < samples; i++ {
		dt := step * time.Duration(i)

		sa, err := orbit.TwoBodyPropagate(p.gm, a.State, dt)
		if err != nil {
			return true, err // keep the pair; refinement will surface the real problem
		}
		sb, err := orbit.TwoBodyPropagate(p.gm, b.State, dt)
		if err != nil {
			return true, err
		}

		d := sa.Position.Sub(sb.Position).Norm()
		if d < minDist {
			minDist = d
		}
		if rs := sa.Velocity.Sub(sb.Velocity).Norm(); rs > maxRelSpeed {
			maxRelSpeed = rs
		}
	}

	// Between two adjacent samples the pair can close at most
	// maxRelSpeed * step/2 relative to the nearer sample.
	margin := maxRelSpeed * step.Seconds() / 2
	lowerBound := minDist - margin

	return lowerBound <= p.cfg.ScreenThreshold, nil
}
