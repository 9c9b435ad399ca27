package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kosha/koshatrack/internal/conjunction"
	"github.com/kosha/koshatrack/internal/force"
	"github.com/kosha/koshatrack/internal/orbit"
	"github.com/kosha/koshatrack/internal/propagate"
	"github.com/kosha/koshatrack/internal/risk"
	"github.com/kosha/koshatrack/internal/tle"
)

// kosha-diag screens a TLE file end to end and prints a conjunction report.
// Useful for eyeballing pipeline behaviour against a known catalog without
// standing up the server.
func main() {
	window := flag.Duration("window", 24*time.Hour, "screening window")
	threshold := flag.Float64("threshold", 5, "miss-distance threshold, km")
	screenThreshold := flag.Float64("screen-threshold", 50, "stage-1 screen threshold, km")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kosha-diag [flags] <tle-file>")
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Println("ERROR opening TLE file:", err)
		os.Exit(1)
	}
	entries, err := tle.Parse(f, logger)
	f.Close()
	if err != nil {
		fmt.Println("ERROR parsing TLE:", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d TLE entries\n", len(entries))

	now := time.Now().UTC()
	var catalog []conjunction.Object
	for _, entry := range entries {
		sv, err := tle.StateAt(entry, now)
		if err != nil {
			fmt.Printf("  NORAD %d: skipped (%v)\n", entry.NORADID, err)
			continue
		}
		catalog = append(catalog, conjunction.Object{State: sv})
	}
	fmt.Printf("Catalog states at %v: %d objects\n", now.Format(time.RFC3339), len(catalog))

	gm := orbit.WGS84()
	prop := propagate.NewPropagator(gm, force.AllPerturbations(), propagate.Config{}, logger)
	pipeline := conjunction.NewPipeline(gm, prop, conjunction.Config{
		Window:          *window,
		ScreenThreshold: *screenThreshold,
		Threshold:       *threshold,
	}, logger)

	start := time.Now()
	res, err := pipeline.Screen(context.Background(), catalog)
	if err != nil {
		fmt.Println("ERROR during screening:", err)
		os.Exit(1)
	}
	fmt.Printf("\nScreened %d pairs in %v: %d discarded by stage 1, %d refined, %d candidates\n",
		res.PairsTotal, time.Since(start).Round(time.Millisecond),
		res.PairsScreened, res.PairsRefined, len(res.Candidates))

	for _, pe := range res.Errors {
		fmt.Printf("  pair %s/%s: ERROR %v\n", pe.PrimaryID, pe.SecondaryID, pe.Err)
	}

	riskCfg := risk.Config{
		HardBodyRadius: 0.02,
		Samples:        10000,
		Seed:           1,
		DefaultSigma:   0.5,
		Tiers:          risk.TierThresholds{Low: 1e-6, Medium: 1e-5, High: 1e-4},
	}
	assessments, errs := risk.AssessAll(res.Candidates, riskCfg)
	for _, err := range errs {
		fmt.Println("  assessment ERROR:", err)
	}

	for _, a := range assessments {
		fmt.Printf("  %s x %s: TCA=%v miss=%.3f km relspeed=%.3f km/s Pc=%.2e (bound %.2e) tier=%s\n",
			a.Candidate.PrimaryID, a.Candidate.SecondaryID,
			a.Candidate.TCA.Format(time.RFC3339),
			a.Candidate.MissDistance, a.Candidate.RelativeSpeed,
			a.MonteCarlo.Pc, a.UpperBound.Pc, a.Tier)
	}
	if len(assessments) == 0 {
		fmt.Println("\nNo conjunctions below threshold.")
	}
}
