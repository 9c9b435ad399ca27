// Package force computes perturbing accelerations beyond the two-body term:
// zonal harmonics (J2/J3/J4), cannonball solar radiation pressure, and Sun/Moon
// third-body gravity. Every term is a pure function of (state, epoch,
// properties, constants); the model composes enabled terms by summation, so
// toggling one term never changes another's contribution. For fixed inputs and
// configuration the output is bit-reproducible.
package force

import (
	"time"

	"github.com/kosha/koshatrack/internal/astro"
	"github.com/kosha/koshatrack/internal/orbit"
)

// Config selects which perturbation terms the model accumulates.
// The zero value disables everything, reducing propagation to pure two-body
// motion.
type Config struct {
	J2            bool `yaml:"j2"`
	J3            bool `yaml:"j3"`
	J4            bool `yaml:"j4"`
	SRP           bool `yaml:"srp"`
	ThirdBodySun  bool `yaml:"thirdBodySun"`
	ThirdBodyMoon bool `yaml:"thirdBodyMoon"`
}

// AllPerturbations enables every modeled term.
func AllPerturbations() Config {
	return Config{J2: true, J3: true, J4: true, SRP: true, ThirdBodySun: true, ThirdBodyMoon: true}
}

// Enabled reports whether any term is active.
func (c Config) Enabled() bool {
	return c.J2 || c.J3 || c.J4 || c.SRP || c.ThirdBodySun || c.ThirdBodyMoon
}

// Model evaluates the net perturbing acceleration for one constant set and
// term selection. Immutable after construction; safe for concurrent use.
type Model struct {
	gm  orbit.GravityModel
	cfg Config
}

// NewModel builds a force model over the given constants and term selection.
func NewModel(gm orbit.GravityModel, cfg Config) *Model {
	return &Model{gm: gm, cfg: cfg}
}

// Acceleration returns the net perturbing acceleration in km/s² to be added to
// the two-body term. Position in km, inertial frame.
func (m *Model) Acceleration(pos orbit.Vec3, epoch time.Time, props orbit.PhysicalObjectProperties) orbit.Vec3 {
	var acc orbit.Vec3

	if m.cfg.J2 || m.cfg.J3 || m.cfg.J4 {
		acc = acc.Add(ZonalAcceleration(m.gm, pos, m.cfg.J2, m.cfg.J3, m.cfg.J4))
	}

	needSun := m.cfg.SRP || m.cfg.ThirdBodySun
	var sunPos orbit.Vec3
	var jd float64
	if needSun || m.cfg.ThirdBodyMoon {
		jd = astro.JulianDate(epoch)
	}
	if needSun {
		sunPos = astro.SunPosition(jd, m.gm.AU)
	}

	if m.cfg.SRP {
		acc = acc.Add(SRPAcceleration(m.gm, pos, sunPos, props))
	}
	if m.cfg.ThirdBodySun {
		acc = acc.Add(ThirdBodyAcceleration(m.gm.MuSun, pos, sunPos))
	}
	if m.cfg.ThirdBodyMoon {
		acc = acc.Add(ThirdBodyAcceleration(m.gm.MuMoon, pos, astro.MoonPosition(jd)))
	}

	return acc
}
