package propagate

import (
	"fmt"
	"time"

	"github.com/kosha/koshatrack/internal/orbit"
)

// DivergenceError reports that numerical integration left the physically
// sensible regime for a nominally bound orbit. The last valid state is
// carried so the caller can retry with a smaller step or tighter tolerance.
type DivergenceError struct {
	ObjectID  string
	Epoch     time.Time
	LastState orbit.StateVector
	Reason    string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("propagation diverged for %s at %s: %s",
		e.ObjectID, e.Epoch.UTC().Format(time.RFC3339), e.Reason)
}
