package force

import "github.com/kosha/koshatrack/internal/orbit"

// minZonalAltitude is the floor below which the J3/J4 series is cut off, km
// above the equatorial radius. Keeps the high-order terms out of the
// near-singular regime during a divergent (impacting) integration.
const minZonalAltitude = 100.0

// ZonalAcceleration returns the oblateness perturbation in km/s² for the
// enabled zonal harmonics. Closed-form unnormalized expressions (Vallado,
// "Fundamentals of Astrodynamics", Sec. 8.7).
func ZonalAcceleration(gm orbit.GravityModel, pos orbit.Vec3, j2, j3, j4 bool) orbit.Vec3 {
	var acc orbit.Vec3

	r := pos.Norm()
	if r == 0 {
		return acc
	}

	x, y, z := pos[0], pos[1], pos[2]
	r2 := r * r
	z2 := z * z
	z2r2 := z2 / r2

	if j2 {
		re2 := gm.Radius * gm.Radius
		factor := -(3.0 * gm.Mu * gm.J2 * re2) / (2.0 * r2 * r2 * r)
		acc[0] += factor * x * (1.0 - 5.0*z2r2)
		acc[1] += factor * y * (1.0 - 5.0*z2r2)
		acc[2] += factor * z * (3.0 - 5.0*z2r2)
	}

	if (j3 || j4) && r >= gm.Radius+minZonalAltitude {
		r4 := r2 * r2
		if j3 {
			re3 := gm.Radius * gm.Radius * gm.Radius
			factor := 3.0 * gm.Mu * gm.J3 * re3 * z / (2.0 * r4 * r2 * r)
			common := 5.0*z2r2 - 1.0
			acc[0] += factor * x * common
			acc[1] += factor * y * common
			acc[2] += factor * z * (5.0*z2r2 - 3.0)
		}
		if j4 {
			re4 := gm.Radius * gm.Radius * gm.Radius * gm.Radius
			factor := -5.0 * gm.Mu * gm.J4 * re4 / (8.0 * r4 * r4 * r)
			common := 35.0*z2*z2/r4 - 30.0*z2r2 + 3.0
			acc[0] += factor * x * common
			acc[1] += factor * y * common
			acc[2] += factor * z * common
		}
	}

	return acc
}
