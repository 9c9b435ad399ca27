package conjunction

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/kosha/koshatrack/internal/orbit"
	"github.com/kosha/koshatrack/internal/propagate"
)

// Config holds the screening parameters.
type Config struct {
	Window time.Duration // screening span from the catalog epoch

	// Stage 1.
	CoarseSamples   int     // Keplerian sample points per pair
	ScreenThreshold float64 // km; deliberately loosened vs Threshold

	// Stage 2.
	Threshold       float64       // km; operational miss-distance threshold
	RefineTolerance time.Duration // TCA refinement tolerance

	Workers int

	// SkipScreen disables Stage 1, sending every pair to refinement. Used for
	// soundness audits of the screen.
	SkipScreen bool
}

// Pipeline screens a catalog pairwise for close approaches. Stateless between
// runs; safe for concurrent use.
type Pipeline struct {
	gm     orbit.GravityModel
	prop   *propagate.Propagator
	cfg    Config
	logger *slog.Logger
}

// NewPipeline builds a screening pipeline over the given propagator.
func NewPipeline(gm orbit.GravityModel, prop *propagate.Propagator, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.CoarseSamples <= 0 {
		cfg.CoarseSamples = 16
	}
	if cfg.ScreenThreshold <= 0 {
		cfg.ScreenThreshold = 50
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Pipeline{gm: gm, prop: prop, cfg: cfg, logger: logger}
}

// pair indexes one unordered catalog pair.
type pair struct{ i, j int }

// Screen runs the two-stage pipeline over the catalog. Every state must carry
// the same epoch; a mismatch is rejected with EpochMismatchError before any
// pair is evaluated. Pair failures are reported per pair and never abort the
// run. On cancellation, candidates already refined remain valid and are
// returned.
func (p *Pipeline) Screen(ctx context.Context, catalog []Object) (*Result, error) {
	return p.ScreenWindow(ctx, catalog, p.cfg.Window)
}

// ScreenWindow is Screen with a per-run window override. A non-positive
// window falls back to the configured one.
func (p *Pipeline) ScreenWindow(ctx context.Context, catalog []Object, window time.Duration) (*Result, error) {
	if window <= 0 {
		window = p.cfg.Window
	}
	res := &Result{}
	if len(catalog) < 2 {
		return res, nil
	}

	// All states must share one epoch: both stages compare the objects at a
	// common offset from it, and samples from different absolute times would
	// yield meaningless geometry.
	epoch := catalog[0].State.Epoch
	for _, o := range catalog[1:] {
		if !o.State.Epoch.Equal(epoch) {
			return nil, &EpochMismatchError{ObjectID: o.State.ObjectID, Epoch: o.State.Epoch, Want: epoch}
		}
	}

	// Stage 1: conservative analytic screen over all pairs.
	var survivors []pair
	for i := 0; i < len(catalog); i++ {
		for j := i + 1; j < len(catalog); j++ {
			res.PairsTotal++
			if p.cfg.SkipScreen {
				survivors = append(survivors, pair{i, j})
				continue
			}
			keep, err := p.screenPair(catalog[i], catalog[j], window)
			if err != nil {
				// The screen keeps the pair on error; note it and refine anyway.
				p.logger.Debug("stage-1 screen error, keeping pair",
					"primary", catalog[i].State.ObjectID,
					"secondary", catalog[j].State.ObjectID,
					"error", err,
				)
			}
			if keep {
				survivors = append(survivors, pair{i, j})
			} else {
				res.PairsScreened++
			}
		}
	}
	res.PairsRefined = len(survivors)

	p.logger.Info("stage-1 screen complete",
		"pairs_total", res.PairsTotal,
		"pairs_discarded", res.PairsScreened,
		"pairs_to_refine", res.PairsRefined,
	)

	// Stage 2: full numerical refinement, bounded concurrency.
	type refineOut struct {
		cand *Candidate
		perr *PairError
	}
	outs := make([]refineOut, len(survivors))

	sem := make(chan struct{}, p.cfg.Workers)
	var wg sync.WaitGroup
	for idx, pr := range survivors {
		wg.Add(1)
		go func(idx int, pr pair) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outs[idx] = refineOut{perr: &PairError{
					PrimaryID:   catalog[pr.i].State.ObjectID,
					SecondaryID: catalog[pr.j].State.ObjectID,
					Err:         ctx.Err(),
				}}
				return
			}

			cand, err := p.refinePair(ctx, catalog[pr.i], catalog[pr.j], window)
			if err != nil {
				outs[idx] = refineOut{perr: &PairError{
					PrimaryID:   catalog[pr.i].State.ObjectID,
					SecondaryID: catalog[pr.j].State.ObjectID,
					Err:         err,
				}}
				return
			}
			outs[idx] = refineOut{cand: cand}
		}(idx, pr)
	}
	wg.Wait()

	for _, o := range outs {
		if o.perr != nil {
			if !errors.Is(o.perr.Err, context.Canceled) {
				p.logger.Warn("pair refinement failed",
					"primary", o.perr.PrimaryID,
					"secondary", o.perr.SecondaryID,
					"error", o.perr.Err,
				)
			}
			res.Errors = append(res.Errors, *o.perr)
			continue
		}
		if o.cand != nil {
			res.Candidates = append(res.Candidates, *o.cand)
		}
	}

	// Closest first; ties broken by earliest TCA.
	sort.Slice(res.Candidates, func(i, j int) bool {
		a, b := res.Candidates[i], res.Candidates[j]
		if a.MissDistance != b.MissDistance {
			return a.MissDistance < b.MissDistance
		}
		return a.TCA.Before(b.TCA)
	})

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}
