package orbit

import (
	"fmt"
	"math"
	"time"
)

// stumpffC and stumpffS are the Stumpff functions used by the universal
// variable formulation of Kepler's problem.
func stumpffC(z float64) float64 {
	switch {
	case z > 1e-8:
		sz := math.Sqrt(z)
		return (1 - math.Cos(sz)) / z
	case z < -1e-8:
		sz := math.Sqrt(-z)
		return (math.Cosh(sz) - 1) / -z
	default:
		return 0.5
	}
}

func stumpffS(z float64) float64 {
	switch {
	case z > 1e-8:
		sz := math.Sqrt(z)
		return (sz - math.Sin(sz)) / (sz * sz * sz)
	case z < -1e-8:
		sz := math.Sqrt(-z)
		return (math.Sinh(sz) - sz) / (sz * sz * sz)
	default:
		return 1.0 / 6.0
	}
}

// TwoBodyPropagate advances a state by dt under pure two-body gravity using
// the universal variable formulation with Lagrange f and g coefficients
// (Vallado algorithm 8). Closed-form in the sense of requiring only a scalar
// Newton solve, with no numerical integration of the equations of motion.
func TwoBodyPropagate(gm GravityModel, sv StateVector, dt time.Duration) (StateVector, error) {
	t := dt.Seconds()
	if t == 0 {
		return sv, nil
	}

	r0vec := sv.Position
	v0vec := sv.Velocity
	r0 := r0vec.Norm()
	v0 := v0vec.Norm()
	if r0 == 0 {
		return StateVector{}, fmt.Errorf("two-body propagation from zero radius")
	}

	sqrtMu := math.Sqrt(gm.Mu)
	rv := r0vec.Dot(v0vec)
	alpha := 2.0/r0 - v0*v0/gm.Mu // 1/a; > 0 for bound orbits

	// Initial guess for the universal anomaly.
	var chi float64
	if alpha > 1e-12 {
		chi = sqrtMu * alpha * t
	} else {
		// Near-parabolic fallback.
		chi = sqrtMu * t / r0
	}

	var z, c, s, r float64
	converged := false
	for i := 0; i < 60; i++ {
		z = alpha * chi * chi
		c = stumpffC(z)
		s = stumpffS(z)

		chi2 := chi * chi
		fTerm := rv / sqrtMu * chi2 * c
		gTerm := (1 - alpha*r0) * chi2 * chi * s
		tOfChi := (fTerm + gTerm + r0*chi) / sqrtMu

		r = chi2*c + rv/sqrtMu*chi*(1-z*s) + r0*(1-z*c)

		dChi := sqrtMu * (t - tOfChi) / r
		chi += dChi
		if math.Abs(dChi) < 1e-10 {
			converged = true
			break
		}
	}
	if !converged {
		return StateVector{}, fmt.Errorf("universal Kepler solve did not converge for %s over %v", sv.ObjectID, dt)
	}

	chi2 := chi * chi
	f := 1 - chi2/r0*c
	g := t - chi2*chi/sqrtMu*s

	pos := r0vec.Scale(f).Add(v0vec.Scale(g))
	rNew := pos.Norm()

	fDot := sqrtMu / (rNew * r0) * chi * (z*s - 1)
	gDot := 1 - chi2/rNew*c

	vel := r0vec.Scale(fDot).Add(v0vec.Scale(gDot))

	return StateVector{
		ObjectID: sv.ObjectID,
		Epoch:    sv.Epoch.Add(dt),
		Position: pos,
		Velocity: vel,
	}, nil
}
