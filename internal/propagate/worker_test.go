package propagate

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/kosha/koshatrack/internal/force"
	"github.com/kosha/koshatrack/internal/orbit"
)

func batchCatalog(n int) []BatchItem {
	gm := orbit.WGS84()
	items := make([]BatchItem, 0, n)
	for i := 0; i < n; i++ {
		r := 6800.0 + float64(i)*25
		items = append(items, BatchItem{
			State: orbit.StateVector{
				ObjectID: "obj-" + string(rune('a'+i)),
				Epoch:    propEpoch,
				Position: orbit.Vec3{r, 0, 0},
				Velocity: orbit.Vec3{0, math.Sqrt(gm.Mu / r), 0},
			},
		})
	}
	return items
}

func TestPropagateBatch(t *testing.T) {
	gm := orbit.WGS84()
	p := NewPropagator(gm, force.Config{}, Config{Workers: 4, Step: 30 * time.Second}, testLogger())

	items := batchCatalog(8)
	ephs, errs := p.PropagateBatch(context.Background(), items, 10*time.Minute)

	if len(errs) != 0 {
		t.Fatalf("errors = %v, want none", errs)
	}
	if len(ephs) != 8 {
		t.Fatalf("ephemerides = %d, want 8", len(ephs))
	}

	// Every object present exactly once, regardless of completion order.
	seen := make(map[string]bool)
	for _, e := range ephs {
		if seen[e.ObjectID] {
			t.Errorf("object %s appears twice", e.ObjectID)
		}
		seen[e.ObjectID] = true
	}
}

func TestPropagateBatchMatchesSequential(t *testing.T) {
	gm := orbit.WGS84()
	p := NewPropagator(gm, force.AllPerturbations(), Config{Workers: 4, Step: 30 * time.Second}, testLogger())

	items := batchCatalog(5)
	ephs, errs := p.PropagateBatch(context.Background(), items, 10*time.Minute)
	if len(errs) != 0 {
		t.Fatalf("errors = %v", errs)
	}

	byID := make(map[string]*orbit.Ephemeris)
	for _, e := range ephs {
		byID[e.ObjectID] = e
	}

	// Concurrent results must be bit-identical to sequential ones.
	for _, item := range items {
		want, err := p.Propagate(context.Background(), item.State, item.Props, 10*time.Minute)
		if err != nil {
			t.Fatalf("sequential %s: %v", item.State.ObjectID, err)
		}
		got := byID[item.State.ObjectID]
		if got == nil {
			t.Fatalf("missing ephemeris for %s", item.State.ObjectID)
		}
		if got.Last().Position != want.Last().Position {
			t.Errorf("%s: batch %v vs sequential %v", item.State.ObjectID, got.Last().Position, want.Last().Position)
		}
	}
}

func TestPropagateBatchPartialFailure(t *testing.T) {
	gm := orbit.WGS84()
	p := NewPropagator(gm, force.Config{}, Config{Workers: 2, Step: 10 * time.Second}, testLogger())

	items := batchCatalog(3)
	// One object on an impact trajectory fails without affecting the rest.
	items[1].State.Velocity = orbit.Vec3{-2, 0, 0}
	items[1].State.ObjectID = "doomed"

	ephs, errs := p.PropagateBatch(context.Background(), items, time.Hour)

	if len(ephs) != 2 {
		t.Errorf("ephemerides = %d, want 2", len(ephs))
	}
	if len(errs) != 1 {
		t.Fatalf("errors = %d, want 1", len(errs))
	}
	if errs[0].ObjectID != "doomed" {
		t.Errorf("failed object = %q, want doomed", errs[0].ObjectID)
	}
}

func TestPropagateBatchEmpty(t *testing.T) {
	gm := orbit.WGS84()
	p := NewPropagator(gm, force.Config{}, Config{}, testLogger())
	ephs, errs := p.PropagateBatch(context.Background(), nil, time.Hour)
	if ephs != nil || errs != nil {
		t.Errorf("empty batch returned %v, %v", ephs, errs)
	}
}
