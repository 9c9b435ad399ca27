package validate

import (
	"math"
	"testing"
	"time"

	"github.com/kosha/koshatrack/internal/orbit"
)

const goodToken = "expected-credential"

func newTestGate(policy Policy) *Gate {
	return NewGate(goodToken, policy, orbit.WGS84())
}

func TestAdmitScenarios(t *testing.T) {
	g := newTestGate(PolicyAuthFirst)

	tests := []struct {
		name        string
		req         Request
		wantOutcome Outcome
		wantReason  Reason
	}{
		{
			name:        "geo verified",
			req:         Request{ObjectID: "geo", SemiMajorAxis: 42164.0, Eccentricity: 0.0001, Inclination: 5.3, Token: goodToken},
			wantOutcome: OutcomeVerified,
		},
		{
			name:        "sso verified",
			req:         Request{ObjectID: "sso", SemiMajorAxis: 6745.0, Eccentricity: 0.01, Inclination: 97.9, Token: goodToken},
			wantOutcome: OutcomeVerified,
		},
		{
			name:        "hyperbolic eccentricity",
			req:         Request{SemiMajorAxis: 7000.0, Eccentricity: 1.2, Inclination: 98.0, Token: goodToken},
			wantOutcome: OutcomePhysicsViolation,
			wantReason:  ReasonEccentricity,
		},
		{
			name:        "negative eccentricity",
			req:         Request{SemiMajorAxis: 7000.0, Eccentricity: -0.2, Inclination: 98.0, Token: goodToken},
			wantOutcome: OutcomePhysicsViolation,
			wantReason:  ReasonEccentricity,
		},
		{
			name:        "retrograde beyond 180",
			req:         Request{SemiMajorAxis: 7000.0, Eccentricity: 0.01, Inclination: 181.0, Token: goodToken},
			wantOutcome: OutcomePhysicsViolation,
			wantReason:  ReasonInclination,
		},
		{
			name:        "valid physics wrong token",
			req:         Request{SemiMajorAxis: 7000.0, Eccentricity: 0.001, Inclination: 51.6, Token: "wrong"},
			wantOutcome: OutcomeSecurityViolation,
			wantReason:  ReasonTokenMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Admit(tt.req)
			if d.Outcome != tt.wantOutcome {
				t.Errorf("outcome = %q, want %q (detail %q)", d.Outcome, tt.wantOutcome, d.Detail)
			}
			if tt.wantReason != "" && d.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", d.Reason, tt.wantReason)
			}
			if got, want := d.Accepted(), tt.wantOutcome == OutcomeVerified; got != want {
				t.Errorf("Accepted() = %v, want %v", got, want)
			}
		})
	}
}

func TestAdmitMalformedNumbers(t *testing.T) {
	g := newTestGate(PolicyAuthFirst)

	tests := []struct {
		name       string
		req        Request
		wantReason Reason
	}{
		{"nan semi-major axis", Request{SemiMajorAxis: math.NaN(), Eccentricity: 0.1, Inclination: 50, Token: goodToken}, ReasonSemiMajorAxis},
		{"inf semi-major axis", Request{SemiMajorAxis: math.Inf(1), Eccentricity: 0.1, Inclination: 50, Token: goodToken}, ReasonSemiMajorAxis},
		{"zero semi-major axis", Request{SemiMajorAxis: 0, Eccentricity: 0.1, Inclination: 50, Token: goodToken}, ReasonSemiMajorAxis},
		{"nan eccentricity", Request{SemiMajorAxis: 7000, Eccentricity: math.NaN(), Inclination: 50, Token: goodToken}, ReasonEccentricity},
		{"parabolic boundary", Request{SemiMajorAxis: 7000, Eccentricity: 1.0, Inclination: 50, Token: goodToken}, ReasonEccentricity},
		{"nan inclination", Request{SemiMajorAxis: 7000, Eccentricity: 0.1, Inclination: math.NaN(), Token: goodToken}, ReasonInclination},
		{"negative inclination", Request{SemiMajorAxis: 7000, Eccentricity: 0.1, Inclination: -0.1, Token: goodToken}, ReasonInclination},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Admit(tt.req)
			if d.Outcome != OutcomePhysicsViolation {
				t.Errorf("outcome = %q, want PHYSICS_VIOLATION", d.Outcome)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", d.Reason, tt.wantReason)
			}
		})
	}
}

func TestAdmitCheckOrder(t *testing.T) {
	// With several fields invalid, the first check in the fixed order wins.
	g := newTestGate(PolicyAuthFirst)
	d := g.Admit(Request{SemiMajorAxis: -1, Eccentricity: 2, Inclination: 300, Token: goodToken})
	if d.Reason != ReasonSemiMajorAxis {
		t.Errorf("reason = %q, want semi-major axis first", d.Reason)
	}
}

func TestAdmitPolicyOrdering(t *testing.T) {
	req := Request{SemiMajorAxis: 7000, Eccentricity: 1.5, Inclination: 50, Token: "wrong"}

	// Auth-first: the token mismatch masks the physics failure.
	d := newTestGate(PolicyAuthFirst).Admit(req)
	if d.Outcome != OutcomeSecurityViolation {
		t.Errorf("auth-first outcome = %q, want SECURITY_VIOLATION", d.Outcome)
	}

	// Physics-first: the physics failure is reported instead.
	d = newTestGate(PolicyPhysicsFirst).Admit(req)
	if d.Outcome != OutcomePhysicsViolation {
		t.Errorf("physics-first outcome = %q, want PHYSICS_VIOLATION", d.Outcome)
	}
	if d.Reason != ReasonEccentricity {
		t.Errorf("physics-first reason = %q", d.Reason)
	}

	// Under physics-first, valid physics with a bad token still fails auth.
	d = newTestGate(PolicyPhysicsFirst).Admit(Request{SemiMajorAxis: 7000, Eccentricity: 0.01, Inclination: 50, Token: "wrong"})
	if d.Outcome != OutcomeSecurityViolation {
		t.Errorf("physics-first valid physics outcome = %q, want SECURITY_VIOLATION", d.Outcome)
	}
}

func TestAdmitDefaultPolicy(t *testing.T) {
	g := NewGate(goodToken, "", orbit.WGS84())
	d := g.Admit(Request{SemiMajorAxis: -1, Eccentricity: 0, Inclination: 0, Token: "wrong"})
	if d.Outcome != OutcomeSecurityViolation {
		t.Errorf("default policy outcome = %q, want auth-first behaviour", d.Outcome)
	}
}

func TestAdmitEnergyCrossCheck(t *testing.T) {
	gm := orbit.WGS84()
	g := newTestGate(PolicyAuthFirst)
	epoch := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Consistent state: circular orbit at the claimed semi-major axis.
	r := 7000.0
	consistent := orbit.StateVector{
		ObjectID: "ok",
		Epoch:    epoch,
		Position: orbit.Vec3{r, 0, 0},
		Velocity: orbit.Vec3{0, math.Sqrt(gm.Mu / r), 0},
	}
	d := g.Admit(Request{ObjectID: "ok", SemiMajorAxis: 7000, Eccentricity: 0, Inclination: 0, Token: goodToken, State: &consistent})
	if d.Outcome != OutcomeVerified {
		t.Errorf("consistent state outcome = %q (%s)", d.Outcome, d.Detail)
	}

	// Same state with a wildly different claimed semi-major axis.
	d = g.Admit(Request{ObjectID: "spoofed", SemiMajorAxis: 26000, Eccentricity: 0, Inclination: 0, Token: goodToken, State: &consistent})
	if d.Outcome != OutcomePhysicsViolation || d.Reason != ReasonEnergyMismatch {
		t.Errorf("spoofed elements: outcome=%q reason=%q, want energy mismatch", d.Outcome, d.Reason)
	}

	// Unbound state: speed above escape velocity.
	unbound := consistent
	unbound.Velocity = orbit.Vec3{0, 12, 0}
	d = g.Admit(Request{ObjectID: "unbound", SemiMajorAxis: 7000, Eccentricity: 0, Inclination: 0, Token: goodToken, State: &unbound})
	if d.Outcome != OutcomePhysicsViolation || d.Reason != ReasonUnboundedEnergy {
		t.Errorf("unbound state: outcome=%q reason=%q, want unbound energy", d.Outcome, d.Reason)
	}

	// NaN state never panics.
	bad := consistent
	bad.Position[0] = math.NaN()
	d = g.Admit(Request{ObjectID: "nan", SemiMajorAxis: 7000, Eccentricity: 0, Inclination: 0, Token: goodToken, State: &bad})
	if d.Outcome != OutcomePhysicsViolation {
		t.Errorf("NaN state outcome = %q, want PHYSICS_VIOLATION", d.Outcome)
	}
}
