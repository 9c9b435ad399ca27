package astro

import (
	"math"

	"github.com/kosha/koshatrack/internal/orbit"
)

// meanMoonDistance is the semi-major axis of the lunar orbit, km.
const meanMoonDistance = 385000.0

// MoonPosition returns the geocentric Moon position in km (inertial equatorial
// frame) for the given Julian date.
//
// Truncated ELP-style series keeping the largest longitude/latitude terms;
// ~1–2 km of error, sufficient for a third-body perturbation felt across
// hundreds of thousands of km.
func MoonPosition(jd float64) orbit.Vec3 {
	t := (jd - J2000) / 36525.0

	meanLon := math.Mod((218.31617+481267.8813*t)*deg, 2*math.Pi)
	meanAnom := math.Mod((134.96292+477198.8676*t)*deg, 2*math.Pi)
	sunAnom := math.Mod((357.52577+35999.0503*t)*deg, 2*math.Pi)
	argLat := math.Mod((93.27209+483202.0175*t)*deg, 2*math.Pi)
	elong := math.Mod((297.85019+445267.1115*t)*deg, 2*math.Pi)

	dist := meanMoonDistance * (1 - 0.0167*math.Cos(meanAnom-sunAnom))

	lon := meanLon + (6.289*math.Sin(meanAnom)+1.274*math.Sin(2*elong-meanAnom))*deg
	lat := 5.128 * math.Sin(argLat) * deg

	obliquity := 23.439 * deg
	cosObl, sinObl := math.Cos(obliquity), math.Sin(obliquity)

	cosLat, sinLat := math.Cos(lat), math.Sin(lat)
	cosLon, sinLon := math.Cos(lon), math.Sin(lon)

	return orbit.Vec3{
		dist * cosLat * cosLon,
		dist * (cosLat*sinLon*cosObl - sinLat*sinObl),
		dist * (cosLat*sinLon*sinObl + sinLat*cosObl),
	}
}
