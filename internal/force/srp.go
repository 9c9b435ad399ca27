package force

import "github.com/kosha/koshatrack/internal/orbit"

// penumbraShellKm approximates the atmospheric contribution to the penumbra
// cone radius, km.
const penumbraShellKm = 100.0

// EclipseFactor returns the solar illumination fraction for a satellite:
// 0 in full umbra, 1 in full sunlight, linear ramp across the penumbra.
// Conical Earth-shadow approximation against the Sun-object-Earth geometry.
func EclipseFactor(gm orbit.GravityModel, satPos, sunPos orbit.Vec3) float64 {
	sunDist := sunPos.Norm()
	if sunDist < gm.AU*0.5 {
		return 1.0 // degenerate Sun position, assume lit
	}
	unitSun := sunPos.Scale(1 / sunDist)

	// Projected distance along the Sun line; positive means sun-facing side.
	s := satPos.Dot(unitSun)
	if s > 0 {
		return 1.0
	}

	perp := satPos.Sub(unitSun.Scale(s)).Norm()

	umbraRadius := -s * (gm.Radius / sunDist)
	penumbraRadius := -s * ((gm.Radius + penumbraShellKm) / sunDist)

	switch {
	case perp <= umbraRadius:
		return 0.0
	case perp <= penumbraRadius:
		return (perp - umbraRadius) / (penumbraRadius - umbraRadius)
	default:
		return 1.0
	}
}

// SRPAcceleration returns the cannonball solar radiation pressure acceleration
// in km/s², directed along the Sun-to-object line. Zero when the object is
// geometrically in Earth's shadow or carries inert properties.
func SRPAcceleration(gm orbit.GravityModel, satPos, sunPos orbit.Vec3, props orbit.PhysicalObjectProperties) orbit.Vec3 {
	if props.Inert() {
		return orbit.Vec3{}
	}

	distAU := sunPos.Norm() / gm.AU
	if distAU < 0.1 {
		return orbit.Vec3{}
	}

	eclipse := EclipseFactor(gm, satPos, sunPos)
	if eclipse == 0 {
		return orbit.Vec3{}
	}

	// SolarPressure (N/m²) × Cr × A/m (m²/kg) gives m/s²; scale to km/s².
	pressure := gm.SolarPressure / (distAU * distAU) * eclipse
	magKmS2 := pressure * props.Cr * props.AreaToMass / 1000.0

	sunToObj := satPos.Sub(sunPos).Unit()
	return sunToObj.Scale(magKmS2)
}
