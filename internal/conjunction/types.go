// Package conjunction finds close approaches within a catalog of propagated
// objects in two stages: a cheap conservative analytic screen over every pair,
// then full-force numerical refinement of the survivors.
package conjunction

import (
	"fmt"
	"time"

	"github.com/kosha/koshatrack/internal/orbit"
)

// Covariance3 is a 3x3 positional covariance in km², row-major.
type Covariance3 [3][3]float64

// Object is one catalog entry submitted for screening.
type Object struct {
	State orbit.StateVector
	Props orbit.PhysicalObjectProperties

	// Covariance is the positional uncertainty at epoch; optional. Carried
	// through to candidates for the probability engine.
	Covariance *Covariance3
}

// Candidate is a refined close approach below the operational threshold.
// Created here, consumed by the probability engine, discarded after reporting.
type Candidate struct {
	PrimaryID   string
	SecondaryID string

	TCA           time.Time
	MissDistance  float64 // km
	RelativeSpeed float64 // km/s at TCA

	Primary   orbit.StateVector
	Secondary orbit.StateVector

	PrimaryCov   *Covariance3
	SecondaryCov *Covariance3
}

// EpochMismatchError rejects a catalog whose objects carry different state
// epochs. Pair screening compares both objects at the same offset from a
// shared epoch; states at different absolute times cannot be compared.
type EpochMismatchError struct {
	ObjectID string
	Epoch    time.Time
	Want     time.Time
}

func (e *EpochMismatchError) Error() string {
	return fmt.Sprintf("catalog epoch mismatch: object %s has epoch %s, catalog epoch is %s",
		e.ObjectID, e.Epoch.Format(time.RFC3339), e.Want.Format(time.RFC3339))
}

// PairError reports a pair whose refinement failed; failures ride alongside
// successful candidates rather than aborting the screening run.
type PairError struct {
	PrimaryID   string
	SecondaryID string
	Err         error
}

// Result is the output of one screening run.
type Result struct {
	Candidates []Candidate
	Errors     []PairError

	PairsTotal    int // all N(N-1)/2 pairs considered
	PairsScreened int // discarded by stage 1
	PairsRefined  int // examined by stage 2
}
