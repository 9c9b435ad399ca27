// Package propagate numerically integrates the perturbed equations of motion,
// producing time-ordered ephemerides. Propagations are pure with respect to
// process state: two objects propagated in any order, or concurrently, yield
// identical results.
package propagate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kosha/koshatrack/internal/force"
	"github.com/kosha/koshatrack/internal/orbit"
)

// Method selects the integration scheme.
type Method string

const (
	MethodRK4   Method = "rk4"   // fixed step, classical 4th order
	MethodRKF45 Method = "rkf45" // adaptive Cash-Karp 4(5)
)

// Config holds the propagation parameters.
type Config struct {
	Workers int           // batch worker pool size
	Step    time.Duration // output sample interval; also the RK4 step
	Method  Method

	// Adaptive control (RKF45 only).
	Tolerance float64       // local error tolerance per step, km
	MinStep   time.Duration // below this, a still-failing step is a divergence

	// Divergence bounds.
	MinAltitude  float64 // km above the equatorial radius; crossing it is an impact
	EscapeRadius float64 // km geocentric; exceeding it means the orbit is not bound
}

// Propagator integrates states forward under two-body gravity plus the
// configured force model. Immutable after construction; safe for concurrent
// use.
type Propagator struct {
	gm     orbit.GravityModel
	model  *force.Model
	cfg    Config
	logger *slog.Logger
}

// NewPropagator builds a propagator over the given constants and perturbation
// selection.
func NewPropagator(gm orbit.GravityModel, forceCfg force.Config, cfg Config, logger *slog.Logger) *Propagator {
	if cfg.Method == "" {
		cfg.Method = MethodRK4
	}
	if cfg.Step <= 0 {
		cfg.Step = 10 * time.Second
	}
	if cfg.MinStep <= 0 {
		cfg.MinStep = 10 * time.Millisecond
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 1e-6
	}
	if cfg.MinAltitude <= 0 {
		cfg.MinAltitude = 100
	}
	if cfg.EscapeRadius <= 0 {
		cfg.EscapeRadius = 2e6
	}
	return &Propagator{
		gm:     gm,
		model:  force.NewModel(gm, forceCfg),
		cfg:    cfg,
		logger: logger,
	}
}

// derivative returns the state derivative for one object's properties.
func (p *Propagator) derivative(props orbit.PhysicalObjectProperties) derivFunc {
	return func(s state6, epoch time.Time) state6 {
		r := s.pos.Norm()
		acc := s.pos.Scale(-p.gm.Mu / (r * r * r))
		acc = acc.Add(p.model.Acceleration(s.pos, epoch, props))
		return state6{pos: s.vel, vel: acc}
	}
}

// Propagate integrates the initial state over [epoch, epoch+duration] and
// returns an ephemeris sampled at the configured step. The input state is
// read-only; the returned ephemeris is a fresh allocation owned by the caller.
func (p *Propagator) Propagate(ctx context.Context, sv orbit.StateVector, props orbit.PhysicalObjectProperties, duration time.Duration) (*orbit.Ephemeris, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("propagation duration %v must be positive", duration)
	}
	if !sv.IsFinite() {
		return nil, fmt.Errorf("initial state for %s is not finite", sv.ObjectID)
	}

	f := p.derivative(props)
	cur := state6{pos: sv.Position, vel: sv.Velocity}

	numSamples := int(duration/p.cfg.Step) + 1
	eph := &orbit.Ephemeris{
		ObjectID: sv.ObjectID,
		Samples:  make([]orbit.StateVector, 0, numSamples),
	}
	eph.Samples = append(eph.Samples, sv)

	epoch := sv.Epoch
	end := sv.Epoch.Add(duration)

	for epoch.Before(end) {
		select {
		case <-ctx.Done():
			return eph, ctx.Err()
		default:
		}

		stepEnd := epoch.Add(p.cfg.Step)
		if stepEnd.After(end) {
			stepEnd = end
		}
		h := stepEnd.Sub(epoch).Seconds()

		var err error
		switch p.cfg.Method {
		case MethodRKF45:
			cur, err = p.advanceAdaptive(f, cur, sv.ObjectID, epoch, h)
		default:
			cur = rk4Step(f, cur, epoch, h)
		}
		if err != nil {
			return eph, err
		}
		epoch = stepEnd

		if derr := p.checkDivergence(sv.ObjectID, epoch, cur); derr != nil {
			return eph, derr
		}

		eph.Samples = append(eph.Samples, orbit.StateVector{
			ObjectID: sv.ObjectID,
			Epoch:    epoch,
			Position: cur.pos,
			Velocity: cur.vel,
		})
	}

	return eph, nil
}

// StepFrom advances a single state by dt with the full force model using
// short fixed RK4 sub-steps (at most 1s each). Intended for small hops such as
// closest-approach refinement between ephemeris samples.
func (p *Propagator) StepFrom(sv orbit.StateVector, props orbit.PhysicalObjectProperties, dt time.Duration) (orbit.StateVector, error) {
	f := p.derivative(props)
	cur := state6{pos: sv.Position, vel: sv.Velocity}

	epoch := sv.Epoch
	remaining := dt.Seconds()
	for remaining > 1e-9 {
		h := remaining
		if h > 1 {
			h = 1
		}
		cur = rk4Step(f, cur, epoch, h)
		epoch = epoch.Add(secondsToDuration(h))
		remaining -= h
	}

	out := orbit.StateVector{ObjectID: sv.ObjectID, Epoch: sv.Epoch.Add(dt), Position: cur.pos, Velocity: cur.vel}
	if !out.IsFinite() {
		return orbit.StateVector{}, &DivergenceError{
			ObjectID: sv.ObjectID, Epoch: out.Epoch, LastState: sv, Reason: "state is NaN/Inf during refinement step",
		}
	}
	return out, nil
}

// advanceAdaptive covers span seconds with adaptive Cash-Karp sub-steps,
// shrinking the step until the local error tolerance is met. A step that still
// fails at the minimum size is reported, never clamped.
func (p *Propagator) advanceAdaptive(f derivFunc, s state6, objectID string, epoch time.Time, span float64) (state6, error) {
	remaining := span
	h := span
	minStep := p.cfg.MinStep.Seconds()

	for remaining > 1e-9 {
		if h > remaining {
			h = remaining
		}

		next, locErr := rkf45Step(f, s, epoch, h)

		if locErr > p.cfg.Tolerance || !next.isFinite() {
			if h <= minStep {
				return s, &DivergenceError{
					ObjectID:  objectID,
					Epoch:     epoch,
					LastState: orbit.StateVector{ObjectID: objectID, Epoch: epoch, Position: s.pos, Velocity: s.vel},
					Reason: fmt.Sprintf("local error %.3e km exceeds tolerance %.3e at minimum step %.3fs",
						locErr, p.cfg.Tolerance, minStep),
				}
			}
			h = math.Max(h/2, minStep)
			continue
		}

		s = next
		epoch = epoch.Add(secondsToDuration(h))
		remaining -= h

		// Grow the step when the error leaves headroom.
		if locErr > 0 {
			grow := 0.9 * math.Pow(p.cfg.Tolerance/locErr, 0.2)
			if grow > 4 {
				grow = 4
			}
			if grow > 1 {
				h *= grow
			}
		} else {
			h *= 2
		}
	}

	return s, nil
}

// checkDivergence enforces the impact floor and escape ceiling for a
// nominally bound orbit.
func (p *Propagator) checkDivergence(objectID string, epoch time.Time, s state6) *DivergenceError {
	last := orbit.StateVector{ObjectID: objectID, Epoch: epoch, Position: s.pos, Velocity: s.vel}

	if !s.isFinite() {
		return &DivergenceError{ObjectID: objectID, Epoch: epoch, LastState: last, Reason: "state is NaN/Inf"}
	}

	r := s.pos.Norm()
	floor := p.gm.Radius + p.cfg.MinAltitude
	if r < floor {
		return &DivergenceError{
			ObjectID:  objectID,
			Epoch:     epoch,
			LastState: last,
			Reason:    fmt.Sprintf("radius %.1f km below impact floor %.1f km", r, floor),
		}
	}
	if r > p.cfg.EscapeRadius {
		return &DivergenceError{
			ObjectID:  objectID,
			Epoch:     epoch,
			LastState: last,
			Reason:    fmt.Sprintf("radius %.1f km beyond escape threshold %.1f km", r, p.cfg.EscapeRadius),
		}
	}
	return nil
}
