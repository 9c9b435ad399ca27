package force

import "github.com/kosha/koshatrack/internal/orbit"

// ThirdBodyAcceleration returns the point-mass perturbation from a third body
// in km/s². mu in km³/s², positions in km (geocentric inertial).
//
// Indirect (difference) formulation, Vallado Eq. 8-35: the direct attraction on
// the satellite minus the attraction on the central body. Subtracting the two
// near-equal geocentric terms before use avoids catastrophic cancellation at
// large body distances.
func ThirdBodyAcceleration(mu float64, satPos, bodyPos orbit.Vec3) orbit.Vec3 {
	satToBody := bodyPos.Sub(satPos)

	d := satToBody.Norm()
	rb := bodyPos.Norm()
	if d == 0 || rb == 0 {
		return orbit.Vec3{}
	}

	direct := satToBody.Scale(mu / (d * d * d))
	indirect := bodyPos.Scale(mu / (rb * rb * rb))

	return direct.Sub(indirect)
}
