package astro

import (
	"math"

	"github.com/kosha/koshatrack/internal/orbit"
)

const deg = math.Pi / 180

// SunPosition returns the geocentric Sun position in km (inertial equatorial
// frame) for the given Julian date.
//
// Low-precision series (Astronomical Almanac): valid 1950–2050, ~0.01°
// accuracy, ample for radiation pressure and third-body perturbations.
func SunPosition(jd float64, au float64) orbit.Vec3 {
	n := jd - J2000

	// Mean longitude and mean anomaly of the Sun.
	meanLon := math.Mod(280.460+0.98564736*n, 360) * deg
	meanAnom := math.Mod(357.528+0.98560028*n, 360) * deg

	eclLon := meanLon + (1.915*math.Sin(meanAnom)+0.020*math.Sin(2*meanAnom))*deg
	eclLon = math.Mod(eclLon, 2*math.Pi)

	obliquity := (23.439 - 0.00000036*n) * deg

	distAU := 1.00014 - 0.01671*math.Cos(meanAnom) - 0.00014*math.Cos(2*meanAnom)

	return orbit.Vec3{
		distAU * math.Cos(eclLon),
		distAU * math.Cos(obliquity) * math.Sin(eclLon),
		distAU * math.Sin(obliquity) * math.Sin(eclLon),
	}.Scale(au)
}
