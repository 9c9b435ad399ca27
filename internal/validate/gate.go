// Package validate implements the admission gate that stands between raw
// element records and any propagation: authentication token check plus
// physical-admissibility checks in a fixed order. Malformed numeric input is a
// physics violation, never a panic.
package validate

import (
	"crypto/subtle"
	"fmt"
	"math"

	"github.com/kosha/koshatrack/internal/orbit"
)

// Outcome is the literal result discriminant surfaced at the external
// boundary. The string values are a compatibility contract and must not
// change.
type Outcome string

const (
	OutcomeVerified          Outcome = "VERIFIED"
	OutcomePhysicsViolation  Outcome = "PHYSICS_VIOLATION"
	OutcomeSecurityViolation Outcome = "SECURITY_VIOLATION"
)

// Reason identifies which admissibility check failed.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonTokenMismatch   Reason = "token_mismatch"
	ReasonSemiMajorAxis   Reason = "semi_major_axis_not_positive"
	ReasonEccentricity    Reason = "eccentricity_out_of_range"
	ReasonInclination     Reason = "inclination_out_of_range"
	ReasonEnergyMismatch  Reason = "energy_inconsistent_with_elements"
	ReasonUnboundedEnergy Reason = "state_not_bound"
)

// Policy selects the ordering between the authentication check and the
// physics checks. The observed external behaviour reports SECURITY_VIOLATION
// whenever the token mismatches, even for invalid physics; PolicyAuthFirst
// reproduces that. PolicyPhysicsFirst reports the physics violation when both
// fail.
type Policy string

const (
	PolicyAuthFirst    Policy = "auth-first"
	PolicyPhysicsFirst Policy = "physics-first"
)

// Request is the canonical ingress record: claimed elements plus the caller's
// authentication token. State is optional; when present it enables the
// energy-conservation cross-check against the claimed semi-major axis.
type Request struct {
	ObjectID      string
	SemiMajorAxis float64 // km
	Eccentricity  float64
	Inclination   float64 // degrees
	Token         string
	State         *orbit.StateVector
}

// Decision is the gate's verdict for one request.
type Decision struct {
	Outcome Outcome
	Reason  Reason
	Detail  string
}

// Accepted reports whether propagation may proceed.
func (d Decision) Accepted() bool {
	return d.Outcome == OutcomeVerified
}

// energyTolerance is the allowed relative disagreement between the energy of a
// supplied state vector and the energy implied by the claimed semi-major axis.
const energyTolerance = 0.05

// Gate performs synchronous admission checks. Stateless beyond its
// configuration; safe for concurrent use.
type Gate struct {
	token  string
	policy Policy
	gm     orbit.GravityModel
}

// NewGate builds a gate holding the expected credential.
func NewGate(token string, policy Policy, gm orbit.GravityModel) *Gate {
	if policy == "" {
		policy = PolicyAuthFirst
	}
	return &Gate{token: token, policy: policy, gm: gm}
}

// Admit evaluates one request. First failure wins within each class; the
// configured policy decides which class is evaluated first.
func (g *Gate) Admit(req Request) Decision {
	authOK := g.tokenMatches(req.Token)

	if g.policy == PolicyAuthFirst && !authOK {
		return Decision{Outcome: OutcomeSecurityViolation, Reason: ReasonTokenMismatch}
	}

	if d, ok := g.checkPhysics(req); !ok {
		return d
	}

	if !authOK {
		return Decision{Outcome: OutcomeSecurityViolation, Reason: ReasonTokenMismatch}
	}

	return Decision{Outcome: OutcomeVerified}
}

func (g *Gate) tokenMatches(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(g.token)) == 1
}

// checkPhysics applies the admissibility checks in their fixed order and
// returns the first failing decision.
func (g *Gate) checkPhysics(req Request) (Decision, bool) {
	a := req.SemiMajorAxis
	if math.IsNaN(a) || math.IsInf(a, 0) || a <= 0 {
		return Decision{
			Outcome: OutcomePhysicsViolation,
			Reason:  ReasonSemiMajorAxis,
			Detail:  fmt.Sprintf("semi-major axis %v km must be finite and > 0", a),
		}, false
	}

	e := req.Eccentricity
	if math.IsNaN(e) || e < 0 || e >= 1 {
		return Decision{
			Outcome: OutcomePhysicsViolation,
			Reason:  ReasonEccentricity,
			Detail:  fmt.Sprintf("eccentricity %v must be in [0,1); e >= 1 is an unbound trajectory", e),
		}, false
	}

	inc := req.Inclination
	if math.IsNaN(inc) || inc < 0 || inc > 180 {
		return Decision{
			Outcome: OutcomePhysicsViolation,
			Reason:  ReasonInclination,
			Detail:  fmt.Sprintf("inclination %v deg must be in [0,180]", inc),
		}, false
	}

	if req.State != nil {
		if d, ok := g.checkEnergy(req, *req.State); !ok {
			return d, false
		}
	}

	return Decision{}, true
}

// checkEnergy cross-checks the supplied Cartesian state against the claimed
// elements: total mechanical energy must be negative (bound) and consistent
// with -mu/2a. Detects spoofed or internally inconsistent inputs.
func (g *Gate) checkEnergy(req Request, state orbit.StateVector) (Decision, bool) {
	if !state.IsFinite() || state.Radius() == 0 {
		return Decision{
			Outcome: OutcomePhysicsViolation,
			Reason:  ReasonUnboundedEnergy,
			Detail:  "state vector is not finite",
		}, false
	}

	energy := state.SpecificEnergy(g.gm)
	if energy >= 0 {
		return Decision{
			Outcome: OutcomePhysicsViolation,
			Reason:  ReasonUnboundedEnergy,
			Detail:  fmt.Sprintf("specific energy %.6f km²/s² is not negative", energy),
		}, false
	}

	claimed := -g.gm.Mu / (2 * req.SemiMajorAxis)
	if math.Abs(energy-claimed) > energyTolerance*math.Abs(claimed) {
		return Decision{
			Outcome: OutcomePhysicsViolation,
			Reason:  ReasonEnergyMismatch,
			Detail: fmt.Sprintf("state energy %.6f km²/s² disagrees with claimed elements (%.6f)",
				energy, claimed),
		}, false
	}

	return Decision{}, true
}
