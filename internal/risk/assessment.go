package risk

import (
	"github.com/kosha/koshatrack/internal/conjunction"
)

// Tier grades a conjunction by its Monte Carlo Pc against configured
// thresholds.
type Tier string

const (
	TierNone   Tier = "none"
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// TierThresholds are the Pc boundaries between tiers; each must be strictly
// greater than the previous.
type TierThresholds struct {
	Low    float64 `yaml:"low"`
	Medium float64 `yaml:"medium"`
	High   float64 `yaml:"high"`
}

func (t TierThresholds) validate() error {
	if t.Low <= 0 || t.Medium <= t.Low || t.High <= t.Medium {
		return &ConfigurationError{Field: "tiers", Msg: "must satisfy 0 < low < medium < high"}
	}
	return nil
}

// tier classifies a Monte Carlo Pc.
func (t TierThresholds) tier(pc float64) Tier {
	switch {
	case pc >= t.High:
		return TierHigh
	case pc >= t.Medium:
		return TierMedium
	case pc >= t.Low:
		return TierLow
	default:
		return TierNone
	}
}

// Assessment is the terminal artifact of the pipeline: a candidate augmented
// with both Pc estimates and a tier. The two estimates stay tagged and
// separate so divergence between them is never hidden.
type Assessment struct {
	Candidate  conjunction.Candidate
	MonteCarlo Estimate
	UpperBound Estimate
	Tier       Tier
}

// Assess runs both estimators for one candidate. The tier derives from the
// Monte Carlo estimate alone.
func Assess(cand conjunction.Candidate, cfg Config) (Assessment, error) {
	mc, err := MonteCarloPc(cand, cfg)
	if err != nil {
		return Assessment{}, err
	}
	bound, err := AlfriendMaxPc(cand, cfg)
	if err != nil {
		return Assessment{}, err
	}

	return Assessment{
		Candidate:  cand,
		MonteCarlo: mc,
		UpperBound: bound,
		Tier:       cfg.Tiers.tier(mc.Pc),
	}, nil
}

// AssessAll evaluates every candidate independently, reporting per-candidate
// failures alongside successes.
func AssessAll(cands []conjunction.Candidate, cfg Config) ([]Assessment, []error) {
	if err := cfg.Validate(); err != nil {
		return nil, []error{err}
	}

	out := make([]Assessment, 0, len(cands))
	var errs []error
	for _, c := range cands {
		a, err := Assess(c, cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, a)
	}
	return out, errs
}
