package orbit

import (
	"fmt"
	"math"
	"time"
)

// OrbitalElements is the classical element set describing a bound ellipse.
// Angles are degrees; the semi-major axis is km. Elements with eccentricity
// outside [0,1) do not describe a bound orbit and are rejected by the
// validation gate before reaching any conversion.
type OrbitalElements struct {
	ObjectID      string
	SemiMajorAxis float64 // km, > 0
	Eccentricity  float64 // [0, 1)
	Inclination   float64 // degrees, [0, 180]
	RAAN          float64 // right ascension of ascending node, degrees
	ArgPerigee    float64 // argument of perigee, degrees
	MeanAnomaly   float64 // degrees
	Epoch         time.Time
}

// Period returns the orbital period in seconds.
func (el OrbitalElements) Period(gm GravityModel) float64 {
	a := el.SemiMajorAxis
	return 2 * math.Pi * math.Sqrt(a*a*a/gm.Mu)
}

// SpecificEnergy returns the two-body energy implied by the semi-major axis,
// km²/s². Used by the validation gate to cross-check claimed elements against
// a supplied Cartesian state.
func (el OrbitalElements) SpecificEnergy(gm GravityModel) float64 {
	return -gm.Mu / (2 * el.SemiMajorAxis)
}

// solveKepler finds the eccentric anomaly E satisfying E - e·sinE = M by
// Newton iteration. M in radians.
func solveKepler(meanAnomaly, ecc float64) float64 {
	e0 := meanAnomaly
	if ecc > 0.8 {
		e0 = math.Pi // safer start for highly eccentric orbits
	}
	for i := 0; i < 50; i++ {
		f := e0 - ecc*math.Sin(e0) - meanAnomaly
		fp := 1 - ecc*math.Cos(e0)
		delta := f / fp
		e0 -= delta
		if math.Abs(delta) < 1e-13 {
			break
		}
	}
	return e0
}

// ToStateVector converts elements to a Cartesian inertial state at the element
// epoch. The conversion is one-way; propagation never writes elements back.
func (el OrbitalElements) ToStateVector(gm GravityModel) (StateVector, error) {
	a := el.SemiMajorAxis
	ecc := el.Eccentricity
	if !(a > 0) || math.IsNaN(a) || math.IsInf(a, 0) {
		return StateVector{}, fmt.Errorf("semi-major axis %v km does not describe an ellipse", a)
	}
	if ecc < 0 || ecc >= 1 || math.IsNaN(ecc) {
		return StateVector{}, fmt.Errorf("eccentricity %v is not in [0,1)", ecc)
	}

	inc := el.Inclination * math.Pi / 180
	raan := el.RAAN * math.Pi / 180
	argp := el.ArgPerigee * math.Pi / 180
	meanAnom := math.Mod(el.MeanAnomaly*math.Pi/180, 2*math.Pi)

	eccAnom := solveKepler(meanAnom, ecc)
	cosE := math.Cos(eccAnom)
	sinE := math.Sin(eccAnom)

	r := a * (1 - ecc*cosE)

	// Perifocal position and velocity (Vallado algorithm 10).
	pPF := Vec3{a * (cosE - ecc), a * math.Sqrt(1-ecc*ecc) * sinE, 0}
	vScale := math.Sqrt(gm.Mu*a) / r
	vPF := Vec3{-vScale * sinE, vScale * math.Sqrt(1-ecc*ecc) * cosE, 0}

	rot := perifocalToInertial(raan, inc, argp)

	return StateVector{
		ObjectID: el.ObjectID,
		Epoch:    el.Epoch,
		Position: rot.apply(pPF),
		Velocity: rot.apply(vPF),
	}, nil
}

// rotation3 is a 3x3 rotation matrix in row-major order.
type rotation3 [3]Vec3

func (m rotation3) apply(v Vec3) Vec3 {
	return Vec3{m[0].Dot(v), m[1].Dot(v), m[2].Dot(v)}
}

// perifocalToInertial builds R3(-raan)·R1(-inc)·R3(-argp).
func perifocalToInertial(raan, inc, argp float64) rotation3 {
	cO, sO := math.Cos(raan), math.Sin(raan)
	ci, si := math.Cos(inc), math.Sin(inc)
	cw, sw := math.Cos(argp), math.Sin(argp)

	return rotation3{
		{cO*cw - sO*sw*ci, -cO*sw - sO*cw*ci, sO * si},
		{sO*cw + cO*sw*ci, -sO*sw + cO*cw*ci, -cO * si},
		{sw * si, cw * si, ci},
	}
}
