package orbit

import "time"

// StateVector is a Cartesian position/velocity pair in an Earth-centered
// inertial frame, tagged with its epoch and owning object. State vectors are
// never mutated in place: propagation produces new ones, leaving the input as
// history.
type StateVector struct {
	ObjectID string
	Epoch    time.Time
	Position Vec3 // km
	Velocity Vec3 // km/s
}

// Radius returns the geocentric distance in km.
func (s StateVector) Radius() float64 {
	return s.Position.Norm()
}

// Speed returns the inertial speed in km/s.
func (s StateVector) Speed() float64 {
	return s.Velocity.Norm()
}

// SpecificEnergy returns the two-body specific mechanical energy in km²/s².
// Negative for bound orbits.
func (s StateVector) SpecificEnergy(gm GravityModel) float64 {
	v := s.Speed()
	return 0.5*v*v - gm.Mu/s.Radius()
}

// AngularMomentum returns the specific angular momentum vector in km²/s.
func (s StateVector) AngularMomentum() Vec3 {
	return s.Position.Cross(s.Velocity)
}

// IsFinite reports whether position and velocity are finite.
func (s StateVector) IsFinite() bool {
	return s.Position.IsFinite() && s.Velocity.IsFinite()
}

// PhysicalObjectProperties carries the per-object coefficients consumed by the
// force model. The zero value is an inert object contributing no SRP or drag
// response.
type PhysicalObjectProperties struct {
	Cr         float64 // coefficient of reflectivity, dimensionless
	AreaToMass float64 // area-to-mass ratio, m²/kg
}

// Inert reports whether the object contributes no radiation-pressure response.
func (p PhysicalObjectProperties) Inert() bool {
	return p.Cr == 0 || p.AreaToMass == 0
}

// Ephemeris is the time-ordered output of one propagation: a sequence of state
// vectors over [start, start+duration]. Produced once, immutable afterwards,
// owned by the caller that requested it.
type Ephemeris struct {
	ObjectID string
	Samples  []StateVector
}

// Start returns the epoch of the first sample.
func (e *Ephemeris) Start() time.Time {
	if len(e.Samples) == 0 {
		return time.Time{}
	}
	return e.Samples[0].Epoch
}

// End returns the epoch of the last sample.
func (e *Ephemeris) End() time.Time {
	if len(e.Samples) == 0 {
		return time.Time{}
	}
	return e.Samples[len(e.Samples)-1].Epoch
}

// Last returns the final state vector. Callers must not invoke it on an empty
// ephemeris.
func (e *Ephemeris) Last() StateVector {
	return e.Samples[len(e.Samples)-1]
}
