package tle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/kosha/koshatrack/internal/orbit"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go, battle-tested, explicit TEME output. Propagate() takes Satellite by
// value so SGP4 error codes are not visible to the caller; failures are
// detected by checking the output for NaN/Inf and unreasonable magnitudes.

// StateAt derives an inertial Cartesian state for a TLE entry at the given
// time via SGP4. The result feeds the core pipeline as a clean StateVector;
// the TEME/J2000 frame difference (~arcseconds of nutation) is well below the
// force-model fidelity and is ignored.
//
// Pre-validates TLE format before passing to the library, because go-satellite
// calls log.Fatal on malformed input (which would kill the process).
func StateAt(entry Entry, t time.Time) (orbit.StateVector, error) {
	if err := validateLines(entry.Line1, entry.Line2); err != nil {
		return orbit.StateVector{}, fmt.Errorf("invalid TLE for NORAD %d: %w", entry.NORADID, err)
	}

	sat := satellite.TLEToSat(entry.Line1, entry.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return orbit.StateVector{}, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", entry.NORADID, sat.Error, sat.ErrorStr)
	}

	t = t.UTC()
	pos, vel := satellite.Propagate(sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	// Detect propagation failures via NaN/Inf check.
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return orbit.StateVector{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", entry.NORADID)
	}

	// Sanity check: position magnitude should be between ~6200km and ~50000km.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return orbit.StateVector{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km", entry.NORADID, mag)
	}

	return orbit.StateVector{
		ObjectID: strconv.Itoa(entry.NORADID),
		Epoch:    t,
		Position: orbit.Vec3{pos.X, pos.Y, pos.Z},
		Velocity: orbit.Vec3{vel.X, vel.Y, vel.Z},
	}, nil
}

// validateLines performs basic format validation on TLE lines.
func validateLines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got %q", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got %q", line2[0])
	}
	return nil
}
