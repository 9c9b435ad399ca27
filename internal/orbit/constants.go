package orbit

// GravityModel bundles the physical constants consumed by the force model and
// propagator. It is passed explicitly into every computation so concurrent runs
// with different constants (e.g. test fixtures) cannot interfere through shared
// package state.
type GravityModel struct {
	Mu     float64 // Earth gravitational parameter, km³/s²
	Radius float64 // Earth equatorial radius, km
	J2     float64 // second zonal harmonic, dimensionless
	J3     float64 // third zonal harmonic
	J4     float64 // fourth zonal harmonic

	MuSun  float64 // Sun gravitational parameter, km³/s²
	MuMoon float64 // Moon gravitational parameter, km³/s²
	AU     float64 // astronomical unit, km

	// SolarPressure is the radiation pressure at 1 AU for full absorption, N/m².
	SolarPressure float64
}

// WGS84 returns the standard constant set used operationally.
func WGS84() GravityModel {
	return GravityModel{
		Mu:            398600.4418,
		Radius:        6378.137,
		J2:            1.082626683e-3,
		J3:            -2.532717e-6,
		J4:            -1.6196219e-6,
		MuSun:         1.32712440018e11,
		MuMoon:        4902.800066,
		AU:            1.495978707e8,
		SolarPressure: 4.56e-6,
	}
}
