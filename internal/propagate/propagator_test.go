package propagate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/kosha/koshatrack/internal/force"
	"github.com/kosha/koshatrack/internal/orbit"
)

var propEpoch = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func circularLEO(id string) orbit.StateVector {
	gm := orbit.WGS84()
	r := 6778.137
	return orbit.StateVector{
		ObjectID: id,
		Epoch:    propEpoch,
		Position: orbit.Vec3{r, 0, 0},
		Velocity: orbit.Vec3{0, math.Sqrt(gm.Mu / r), 0},
	}
}

func TestPropagateTwoBodyEnergyConservation(t *testing.T) {
	gm := orbit.WGS84()
	sv := circularLEO("leo")
	e0 := sv.SpecificEnergy(gm)
	h0 := sv.AngularMomentum().Norm()

	for _, method := range []Method{MethodRK4, MethodRKF45} {
		t.Run(string(method), func(t *testing.T) {
			p := NewPropagator(gm, force.Config{}, Config{Method: method, Step: 10 * time.Second}, testLogger())

			eph, err := p.Propagate(context.Background(), sv, orbit.PhysicalObjectProperties{}, 2*time.Hour)
			if err != nil {
				t.Fatalf("Propagate: %v", err)
			}

			last := eph.Last()
			if rel := math.Abs(last.SpecificEnergy(gm)-e0) / math.Abs(e0); rel > 1e-8 {
				t.Errorf("energy drift %.2e over 2h", rel)
			}
			if rel := math.Abs(last.AngularMomentum().Norm()-h0) / h0; rel > 1e-8 {
				t.Errorf("angular momentum drift %.2e over 2h", rel)
			}
		})
	}
}

func TestPropagateMatchesAnalytic(t *testing.T) {
	gm := orbit.WGS84()
	sv := circularLEO("leo")
	p := NewPropagator(gm, force.Config{}, Config{Step: 10 * time.Second}, testLogger())

	eph, err := p.Propagate(context.Background(), sv, orbit.PhysicalObjectProperties{}, 30*time.Minute)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	// With perturbations off, RK4 must track the closed-form two-body
	// solution to well under a meter over half an orbit.
	want, err := orbit.TwoBodyPropagate(gm, sv, 30*time.Minute)
	if err != nil {
		t.Fatalf("TwoBodyPropagate: %v", err)
	}
	if d := eph.Last().Position.Sub(want.Position).Norm(); d > 1e-4 {
		t.Errorf("numerical vs analytic position differ by %.6f km", d)
	}
}

func TestPropagateSampleSpacing(t *testing.T) {
	gm := orbit.WGS84()
	sv := circularLEO("leo")
	p := NewPropagator(gm, force.Config{}, Config{Step: 30 * time.Second}, testLogger())

	eph, err := p.Propagate(context.Background(), sv, orbit.PhysicalObjectProperties{}, 5*time.Minute)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	if len(eph.Samples) != 11 {
		t.Fatalf("samples = %d, want 11 (inclusive endpoints at 30s step)", len(eph.Samples))
	}
	for i := 1; i < len(eph.Samples); i++ {
		gap := eph.Samples[i].Epoch.Sub(eph.Samples[i-1].Epoch)
		if gap != 30*time.Second {
			t.Errorf("sample %d gap = %v, want 30s", i, gap)
		}
	}
	if !eph.End().Equal(sv.Epoch.Add(5 * time.Minute)) {
		t.Errorf("end = %v, want epoch+5m", eph.End())
	}
}

func TestPropagateJ2RegressesNode(t *testing.T) {
	gm := orbit.WGS84()
	el := orbit.OrbitalElements{
		ObjectID:      "sso-check",
		SemiMajorAxis: 6900,
		Eccentricity:  0.001,
		Inclination:   51.6,
		RAAN:          40,
		Epoch:         propEpoch,
	}
	sv, err := el.ToStateVector(gm)
	if err != nil {
		t.Fatalf("ToStateVector: %v", err)
	}

	p := NewPropagator(gm, force.Config{J2: true}, Config{Step: 10 * time.Second}, testLogger())
	eph, err := p.Propagate(context.Background(), sv, orbit.PhysicalObjectProperties{}, 24*time.Hour)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	// For a prograde orbit J2 regresses the ascending node westward at
	// roughly -3.5 deg/day for this geometry.
	node0 := nodeLongitude(sv)
	node1 := nodeLongitude(eph.Last())
	drift := math.Mod(node1-node0+540, 360) - 180
	if drift > -2 || drift < -6 {
		t.Errorf("nodal drift %.2f deg/day, want westward in [-6, -2]", drift)
	}
}

// nodeLongitude returns the RAAN in degrees recovered from a state.
func nodeLongitude(sv orbit.StateVector) float64 {
	h := sv.AngularMomentum()
	n := orbit.Vec3{0, 0, 1}.Cross(h)
	return math.Atan2(n[1], n[0]) * 180 / math.Pi
}

func TestPropagateDivergenceImpact(t *testing.T) {
	gm := orbit.WGS84()
	// Radial drop: no tangential velocity, the object falls and crosses the
	// impact floor.
	sv := orbit.StateVector{
		ObjectID: "faller",
		Epoch:    propEpoch,
		Position: orbit.Vec3{6778.137, 0, 0},
		Velocity: orbit.Vec3{-1.5, 0, 0},
	}
	p := NewPropagator(gm, force.Config{}, Config{Step: 10 * time.Second}, testLogger())

	_, err := p.Propagate(context.Background(), sv, orbit.PhysicalObjectProperties{}, 2*time.Hour)
	var derr *DivergenceError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want DivergenceError", err)
	}
	if derr.ObjectID != "faller" {
		t.Errorf("ObjectID = %q", derr.ObjectID)
	}
	if !derr.LastState.IsFinite() {
		t.Error("LastState must carry the last valid state")
	}
}

func TestPropagateDivergenceEscape(t *testing.T) {
	gm := orbit.WGS84()
	sv := orbit.StateVector{
		ObjectID: "escaper",
		Epoch:    propEpoch,
		Position: orbit.Vec3{7000, 0, 0},
		Velocity: orbit.Vec3{0, 15, 0}, // well above escape speed
	}
	p := NewPropagator(gm, force.Config{}, Config{Step: time.Minute, EscapeRadius: 1e5}, testLogger())

	_, err := p.Propagate(context.Background(), sv, orbit.PhysicalObjectProperties{}, 48*time.Hour)
	var derr *DivergenceError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want DivergenceError", err)
	}
}

func TestPropagateRejectsBadInput(t *testing.T) {
	gm := orbit.WGS84()
	p := NewPropagator(gm, force.Config{}, Config{}, testLogger())

	if _, err := p.Propagate(context.Background(), circularLEO("x"), orbit.PhysicalObjectProperties{}, -time.Minute); err == nil {
		t.Error("expected error for negative duration")
	}

	bad := circularLEO("nan")
	bad.Position[0] = math.NaN()
	if _, err := p.Propagate(context.Background(), bad, orbit.PhysicalObjectProperties{}, time.Minute); err == nil {
		t.Error("expected error for NaN initial state")
	}
}

func TestPropagateCancellation(t *testing.T) {
	gm := orbit.WGS84()
	p := NewPropagator(gm, force.AllPerturbations(), Config{Step: time.Second}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eph, err := p.Propagate(ctx, circularLEO("cancelled"), orbit.PhysicalObjectProperties{}, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// The partial ephemeris up to cancellation remains valid.
	if eph == nil || len(eph.Samples) < 1 {
		t.Error("expected at least the initial sample on cancellation")
	}
}

func TestPropagateOrderIndependence(t *testing.T) {
	gm := orbit.WGS84()
	p := NewPropagator(gm, force.AllPerturbations(), Config{Step: 10 * time.Second}, testLogger())
	props := orbit.PhysicalObjectProperties{Cr: 1.2, AreaToMass: 0.01}

	a := circularLEO("a")
	b := circularLEO("b")
	b.Position = orbit.Vec3{0, 7100, 0}
	b.Velocity = orbit.Vec3{-math.Sqrt(gm.Mu / 7100), 0, 0}

	ctx := context.Background()
	ephA1, err := p.Propagate(ctx, a, props, 20*time.Minute)
	if err != nil {
		t.Fatalf("a first: %v", err)
	}
	if _, err := p.Propagate(ctx, b, props, 20*time.Minute); err != nil {
		t.Fatalf("b: %v", err)
	}
	ephA2, err := p.Propagate(ctx, a, props, 20*time.Minute)
	if err != nil {
		t.Fatalf("a second: %v", err)
	}

	// Propagation is pure: interleaving other work changes nothing.
	if ephA1.Last().Position != ephA2.Last().Position {
		t.Errorf("repeat propagation differs: %v vs %v", ephA1.Last().Position, ephA2.Last().Position)
	}
}

func TestRKF45TightensOverRK4(t *testing.T) {
	gm := orbit.WGS84()
	// Eccentric orbit where a fixed coarse step struggles near perigee.
	el := orbit.OrbitalElements{
		ObjectID:      "eccentric",
		SemiMajorAxis: 12000,
		Eccentricity:  0.4,
		Inclination:   30,
		Epoch:         propEpoch,
	}
	sv, err := el.ToStateVector(gm)
	if err != nil {
		t.Fatalf("ToStateVector: %v", err)
	}

	span := 90 * time.Minute
	want, err := orbit.TwoBodyPropagate(gm, sv, span)
	if err != nil {
		t.Fatalf("TwoBodyPropagate: %v", err)
	}

	coarse := Config{Step: 60 * time.Second}
	rk4 := NewPropagator(gm, force.Config{}, coarse, testLogger())
	rkfCfg := coarse
	rkfCfg.Method = MethodRKF45
	rkfCfg.Tolerance = 1e-9
	rkf := NewPropagator(gm, force.Config{}, rkfCfg, testLogger())

	ephRK4, err := rk4.Propagate(context.Background(), sv, orbit.PhysicalObjectProperties{}, span)
	if err != nil {
		t.Fatalf("rk4: %v", err)
	}
	ephRKF, err := rkf.Propagate(context.Background(), sv, orbit.PhysicalObjectProperties{}, span)
	if err != nil {
		t.Fatalf("rkf45: %v", err)
	}

	errRK4 := ephRK4.Last().Position.Sub(want.Position).Norm()
	errRKF := ephRKF.Last().Position.Sub(want.Position).Norm()
	if errRKF > errRK4 {
		t.Errorf("adaptive error %.3e km exceeds fixed-step error %.3e km", errRKF, errRK4)
	}
}

func BenchmarkPropagateLEO(b *testing.B) {
	gm := orbit.WGS84()
	p := NewPropagator(gm, force.AllPerturbations(), Config{Step: 10 * time.Second}, testLogger())
	sv := circularLEO("bench")
	props := orbit.PhysicalObjectProperties{Cr: 1.5, AreaToMass: 0.02}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Propagate(context.Background(), sv, props, 10*time.Minute); err != nil {
			b.Fatal(err)
		}
	}
}
