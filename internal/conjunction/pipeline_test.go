package conjunction

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
	"github.com/kosha/koshatrack/internal/propagate"
)

var screenEpoch = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// circularObject builds a circular equatorial object at radius r km.
func circularObject(id string, r float64) Object {
	gm := orbit.WGS84()
	return Object{
		State: orbit.StateVector{
			ObjectID: id,
			Epoch:    screenEpoch,
			Position: orbit.Vec3{r, 0, 0},
			Velocity: orbit.Vec3{0, math.Sqrt(gm.Mu / r), 0},
		},
	}
}

func testPipeline(cfg Config) *Pipeline {
	gm := orbit.WGS84()
	prop := propagate.NewPropagator(gm, force.Config{}, propagate.Config{Step: 10 * time.Second}, testLogger())
	return NewPipeline(gm, prop, cfg, testLogger())
}

func screenConfig() Config {
	return Config{
		Window:          30 * time.Minute,
		CoarseSamples:   8,
		ScreenThreshold: 50,
		Threshold:       5,
		RefineTolerance: 100 * time.Millisecond,
		Workers:         2,
	}
}

func TestScreenFindsCloseApproach(t *testing.T) {
	catalog := []Object{
		circularObject("prim", 7000),
		circularObject("sec", 7000.5),
		circularObject("geo", 42164),
	}

	p := testPipeline(screenConfig())
	res, err := p.Screen(context.Background(), catalog)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}

	if res.PairsTotal != 3 {
		t.Errorf("PairsTotal = %d, want 3", res.PairsTotal)
	}
	// Both LEO-GEO pairs are provably far and must be discarded by stage 1.
	if res.PairsScreened != 2 {
		t.Errorf("PairsScreened = %d, want 2", res.PairsScreened)
	}
	if res.PairsRefined != 1 {
		t.Errorf("PairsRefined = %d, want 1", res.PairsRefined)
	}

	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1; errors %v", len(res.Candidates), res.Errors)
	}
	cand := res.Candidates[0]
	if cand.PrimaryID != "prim" || cand.SecondaryID != "sec" {
		t.Errorf("candidate pair %s/%s", cand.PrimaryID, cand.SecondaryID)
	}
	// The minimum separation of near-coincident co-orbital objects is close
	// to the initial 0.5 km offset.
	if cand.MissDistance <= 0 || cand.MissDistance > 1 {
		t.Errorf("miss distance %.4f km, want ~0.5", cand.MissDistance)
	}
	if cand.TCA.Before(screenEpoch) || cand.TCA.After(screenEpoch.Add(30*time.Minute)) {
		t.Errorf("TCA %v outside screening window", cand.TCA)
	}
}

func TestScreenSoundness(t *testing.T) {
	// The screened run may not produce any candidate the unscreened run
	// would not also produce.
	catalog := []Object{
		circularObject("a", 7000),
		circularObject("b", 7000.4),
		circularObject("c", 7001.2),
		circularObject("d", 7400),
		circularObject("e", 42164),
	}

	cfgFull := screenConfig()
	cfgFull.SkipScreen = true
	full, err := testPipeline(cfgFull).Screen(context.Background(), catalog)
	if err != nil {
		t.Fatalf("unscreened run: %v", err)
	}

	staged, err := testPipeline(screenConfig()).Screen(context.Background(), catalog)
	if err != nil {
		t.Fatalf("staged run: %v", err)
	}

	fullPairs := make(map[string]bool)
	for _, c := range full.Candidates {
		fullPairs[c.PrimaryID+"/"+c.SecondaryID] = true
	}
	for _, c := range staged.Candidates {
		if !fullPairs[c.PrimaryID+"/"+c.SecondaryID] {
			t.Errorf("staged candidate %s/%s missing from unscreened run", c.PrimaryID, c.SecondaryID)
		}
	}
	if len(staged.Candidates) != len(full.Candidates) {
		t.Errorf("staged found %d candidates, unscreened %d; stage 1 dropped a true positive",
			len(staged.Candidates), len(full.Candidates))
	}
}

func TestScreenSortsByMissDistance(t *testing.T) {
	catalog := []Object{
		circularObject("a", 7000),
		circularObject("b", 7000.3),
		circularObject("c", 7001.5),
	}

	res, err := testPipeline(screenConfig()).Screen(context.Background(), catalog)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if len(res.Candidates) < 2 {
		t.Fatalf("candidates = %d, want several for sorting check", len(res.Candidates))
	}
	for i := 1; i < len(res.Candidates); i++ {
		if res.Candidates[i].MissDistance < res.Candidates[i-1].MissDistance {
			t.Errorf("candidates not sorted: %.4f before %.4f",
				res.Candidates[i-1].MissDistance, res.Candidates[i].MissDistance)
		}
	}
}

func TestScreenDiscardsFarPair(t *testing.T) {
	catalog := []Object{
		circularObject("leo", 7000),
		circularObject("geo", 42164),
	}

	res, err := testPipeline(screenConfig()).Screen(context.Background(), catalog)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if res.PairsScreened != 1 || res.PairsRefined != 0 {
		t.Errorf("screened=%d refined=%d, want 1/0", res.PairsScreened, res.PairsRefined)
	}
	if len(res.Candidates) != 0 {
		t.Errorf("candidates = %d, want 0", len(res.Candidates))
	}
}

func TestScreenSmallCatalogs(t *testing.T) {
	p := testPipeline(screenConfig())

	res, err := p.Screen(context.Background(), nil)
	if err != nil || res.PairsTotal != 0 {
		t.Errorf("empty catalog: res=%+v err=%v", res, err)
	}

	res, err = p.Screen(context.Background(), []Object{circularObject("solo", 7000)})
	if err != nil || res.PairsTotal != 0 {
		t.Errorf("single object: res=%+v err=%v", res, err)
	}
}

func TestScreenRejectsEpochMismatch(t *testing.T) {
	p := testPipeline(screenConfig())

	// Identical states half an orbital period apart in epoch: the objects
	// never come close at any shared instant, so treating the states as
	// contemporaneous would fabricate a zero-miss conjunction.
	a := circularObject("a", 7000)
	b := circularObject("b", 7000)
	period := 2 * math.Pi * math.Sqrt(7000*7000*7000/orbit.WGS84().Mu)
	b.State.Epoch = screenEpoch.Add(time.Duration(period/2) * time.Second)

	res, err := p.Screen(context.Background(), []Object{a, b})
	if res != nil {
		t.Errorf("res = %+v, want nil", res)
	}
	var em *EpochMismatchError
	if !errors.As(err, &em) {
		t.Fatalf("err = %v, want *EpochMismatchError", err)
	}
	if em.ObjectID != "b" || !em.Want.Equal(screenEpoch) {
		t.Errorf("EpochMismatchError = %+v, want object b against epoch %v", em, screenEpoch)
	}
}

func TestScreenCancellation(t *testing.T) {
	catalog := []Object{
		circularObject("a", 7000),
		circularObject("b", 7000.5),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := testPipeline(screenConfig()).Screen(ctx, catalog)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if res == nil {
		t.Fatal("result must be returned even on cancellation")
	}
	// The interrupted pair is reported, not dropped.
	if len(res.Candidates)+len(res.Errors) == 0 {
		t.Error("cancelled run reported neither candidates nor errors")
	}
}

func TestScreenCarriesCovariance(t *testing.T) {
	cov := Covariance3{{0.01, 0, 0}, {0, 0.01, 0}, {0, 0, 0.01}}
	a := circularObject("a", 7000)
	a.Covariance = &cov
	b := circularObject("b", 7000.5)

	res, err := testPipeline(screenConfig()).Screen(context.Background(), []Object{a, b})
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(res.Candidates))
	}
	if res.Candidates[0].PrimaryCov != &cov {
		t.Error("primary covariance not carried through to the candidate")
	}
	if res.Candidates[0].SecondaryCov != nil {
		t.Error("secondary covariance should stay nil")
	}
}

func TestShortArcTCA(t *testing.T) {
	a := orbit.StateVector{Position: orbit.Vec3{10, 0, 0}, Velocity: orbit.Vec3{-1, 0, 0}}
	b := orbit.StateVector{Position: orbit.Vec3{0, 0, 0}, Velocity: orbit.Vec3{0, 0, 0}}

	tca, miss := shortArcTCA(a, b)
	if math.Abs(tca-10) > 1e-12 {
		t.Errorf("tca = %v s, want 10", tca)
	}
	if miss > 1e-12 {
		t.Errorf("miss = %v km, want 0", miss)
	}

	// Parallel motion: closest approach is now.
	c := orbit.StateVector{Position: orbit.Vec3{0, 3, 0}, Velocity: orbit.Vec3{-1, 0, 0}}
	_, miss = shortArcTCA(a, c)
	if math.Abs(miss-math.Sqrt(109)) > 1e-9 {
		t.Errorf("parallel miss = %v, want sqrt(109)", miss)
	}
}
