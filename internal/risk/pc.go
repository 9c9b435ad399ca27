// Package risk converts a refined conjunction geometry plus state covariance
// into a probability of collision by two independent estimators: a Monte Carlo
// sampler and an Alfriend-style analytic upper bound. The two are reported
// side by side and never unified; the bound exists for cross-validation, not
// as a substitute for the sampled estimate.
package risk

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/kosha/koshatrack/internal/conjunction"
	"github.com/kosha/koshatrack/internal/orbit"
)

// EstimatorKind tags which method produced an estimate.
type EstimatorKind string

const (
	EstimatorMonteCarlo    EstimatorKind = "monte_carlo"
	EstimatorAlfriendBound EstimatorKind = "alfriend_upper_bound"
)

// Estimate is one estimator's probability of collision.
type Estimate struct {
	Kind    EstimatorKind
	Pc      float64
	Samples int // 0 for the analytic bound
}

// ConfigurationError reports invalid engine parameters. Raised before any
// computation starts.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("risk configuration: %s %s", e.Field, e.Msg)
}

// Config holds the probability engine parameters.
type Config struct {
	HardBodyRadius float64 // combined hard-body radius, km
	Samples        int     // Monte Carlo sample count
	Seed           int64   // explicit seed keeps batch runs reproducible

	// DefaultSigma is the isotropic 1-sigma positional uncertainty (km)
	// assumed for an object that carries no covariance.
	DefaultSigma float64

	Tiers TierThresholds
}

// Validate fails fast on parameters that would poison every downstream
// computation.
func (c Config) Validate() error {
	if c.HardBodyRadius <= 0 || math.IsNaN(c.HardBodyRadius) {
		return &ConfigurationError{Field: "hardBodyRadius", Msg: "must be positive"}
	}
	if c.Samples <= 0 {
		return &ConfigurationError{Field: "samples", Msg: "must be positive"}
	}
	if c.DefaultSigma <= 0 {
		return &ConfigurationError{Field: "defaultSigma", Msg: "must be positive"}
	}
	return c.Tiers.validate()
}

// combinedCovariance sums the two objects' positional covariances, filling in
// an isotropic default for an absent one.
func combinedCovariance(cand conjunction.Candidate, defaultSigma float64) *mat.SymDense {
	sum := mat.NewSymDense(3, nil)
	addCov := func(cov *conjunction.Covariance3) {
		if cov == nil {
			s2 := defaultSigma * defaultSigma
			for i := 0; i < 3; i++ {
				sum.SetSym(i, i, sum.At(i, i)+s2)
			}
			return
		}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				sum.SetSym(i, j, sum.At(i, j)+cov[i][j])
			}
		}
	}
	addCov(cand.PrimaryCov)
	addCov(cand.SecondaryCov)
	return sum
}

// MonteCarloPc estimates the probability of collision by sampling relative
// positions at TCA from the combined covariance and counting the fraction
// inside the hard-body radius. Accuracy improves with sample count; there is
// no closed-form convergence guarantee, only the law of large numbers.
func MonteCarloPc(cand conjunction.Candidate, cfg Config) (Estimate, error) {
	if err := cfg.Validate(); err != nil {
		return Estimate{}, err
	}

	cov := combinedCovariance(cand, cfg.DefaultSigma)

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return Estimate{}, &ConfigurationError{Field: "covariance", Msg: "is not positive definite"}
	}
	var lower mat.TriDense
	chol.LTo(&lower)

	mean := cand.Primary.Position.Sub(cand.Secondary.Position)
	rng := rand.New(rand.NewSource(cfg.Seed))

	hits := 0
	for n := 0; n < cfg.Samples; n++ {
		z := [3]float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}

		var sample orbit.Vec3
		for i := 0; i < 3; i++ {
			s := mean[i]
			for j := 0; j <= i; j++ {
				s += lower.At(i, j) * z[j]
			}
			sample[i] = s
		}

		if sample.Norm() < cfg.HardBodyRadius {
			hits++
		}
	}

	return Estimate{
		Kind:    EstimatorMonteCarlo,
		Pc:      float64(hits) / float64(cfg.Samples),
		Samples: cfg.Samples,
	}, nil
}

// AlfriendMaxPc computes the analytic upper bound: the combined covariance is
// projected onto the encounter plane (normal to the relative velocity) and a
// 2-D isotropic Gaussian is integrated over the hard-body disk. Fast and
// deterministic; a sanity ceiling on the Monte Carlo estimate, never treated
// as more precise than it.
func AlfriendMaxPc(cand conjunction.Candidate, cfg Config) (Estimate, error) {
	if err := cfg.Validate(); err != nil {
		return Estimate{}, err
	}

	cov := combinedCovariance(cand, cfg.DefaultSigma)
	relPos := cand.Primary.Position.Sub(cand.Secondary.Position)
	relVel := cand.Primary.Velocity.Sub(cand.Secondary.Velocity)

	e1, e2 := encounterPlaneBasis(relPos, relVel)

	s11 := quadForm(cov, e1)
	s22 := quadForm(cov, e2)
	sigma2 := (s11 + s22) / 2
	if sigma2 <= 0 {
		return Estimate{}, &ConfigurationError{Field: "covariance", Msg: "projects to zero variance on the encounter plane"}
	}

	d := relPos.Norm()
	r := cfg.HardBodyRadius

	pc := (r * r / (2 * sigma2)) * math.Exp(-d*d/(2*sigma2))
	if pc > 1 {
		pc = 1
	}

	return Estimate{Kind: EstimatorAlfriendBound, Pc: pc}, nil
}

// encounterPlaneBasis returns an orthonormal basis of the plane normal to the
// relative velocity, with e1 along the in-plane miss direction when defined.
func encounterPlaneBasis(relPos, relVel orbit.Vec3) (orbit.Vec3, orbit.Vec3) {
	u := relVel.Unit()
	if u.Norm() == 0 {
		// Degenerate encounter: fall back to an arbitrary frame.
		return orbit.Vec3{1, 0, 0}, orbit.Vec3{0, 1, 0}
	}

	inPlane := relPos.Sub(u.Scale(relPos.Dot(u)))
	e1 := inPlane.Unit()
	if e1.Norm() == 0 {
		ref := orbit.Vec3{1, 0, 0}
		if math.Abs(u[0]) > 0.9 {
			ref = orbit.Vec3{0, 1, 0}
		}
		e1 = u.Cross(ref).Unit()
	}
	return e1, u.Cross(e1)
}

// quadForm evaluates eᵀ·C·e for a 3x3 symmetric matrix.
func quadForm(c *mat.SymDense, e orbit.Vec3) float64 {
	var s float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s += e[i] * c.At(i, j) * e[j]
		}
	}
	return s
}
