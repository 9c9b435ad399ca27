package propagate

import (
	"context"
	"sync"
	"time"

	"github.com/kosha/koshatrack/internal/orbit"
)

// BatchItem is one object submitted for batch propagation.
type BatchItem struct {
	State orbit.StateVector
	Props orbit.PhysicalObjectProperties
}

// BatchError pairs a failed object with its error so failures ride alongside
// successes instead of aborting the batch.
type BatchError struct {
	ObjectID string
	Err      error
}

// batchJob is a unit of work for the worker pool.
type batchJob struct {
	item     BatchItem
	duration time.Duration
}

// batchResult is the output of a single object's propagation.
type batchResult struct {
	eph      *orbit.Ephemeris
	err      error
	objectID string
}

// PropagateBatch propagates every item over the duration using a fixed worker
// pool. Each worker owns its own integration state, so items are independent
// and order-insensitive. On cancellation, ephemerides already produced remain
// valid and are returned.
func (p *Propagator) PropagateBatch(ctx context.Context, items []BatchItem, duration time.Duration) ([]*orbit.Ephemeris, []BatchError) {
	if len(items) == 0 {
		return nil, nil
	}

	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan batchJob, workers*2)
	results := make(chan batchResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				eph, err := p.Propagate(ctx, job.item.State, job.item.Props, job.duration)
				select {
				case results <- batchResult{eph: eph, err: err, objectID: job.item.State.ObjectID}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, item := range items {
			select {
			case jobs <- batchJob{item: item, duration: duration}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ephemerides := make([]*orbit.Ephemeris, 0, len(items))
	var batchErrs []BatchError

	for result := range results {
		if result.err != nil {
			batchErrs = append(batchErrs, BatchError{ObjectID: result.objectID, Err: result.err})
			p.logger.Warn("propagation failed",
				"object_id", result.objectID,
				"error", result.err,
			)
			continue
		}
		ephemerides = append(ephemerides, result.eph)
	}

	return ephemerides, batchErrs
}
