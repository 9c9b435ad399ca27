package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kosha/koshatrack/internal/conjunction"
	"github.com/kosha/koshatrack/internal/metrics"
	"github.com/kosha/koshatrack/internal/orbit"
	"github.com/kosha/koshatrack/internal/propagate"
	"github.com/kosha/koshatrack/internal/risk"
	"github.com/kosha/koshatrack/internal/tle"
	"github.com/kosha/koshatrack/internal/validate"
)

// maxBodyBytes caps request bodies; a full catalog upload fits comfortably.
const maxBodyBytes = 16 << 20

// Handlers wires the HTTP surface to the core pipeline.
type Handlers struct {
	gate     *validate.Gate
	prop     *propagate.Propagator
	pipeline *conjunction.Pipeline
	riskCfg  risk.Config
	store    *tle.Store
	window   time.Duration
	logger   *slog.Logger
}

// NewHandlers assembles the handler set from already-constructed components.
func NewHandlers(gate *validate.Gate, prop *propagate.Propagator,
	pipeline *conjunction.Pipeline, riskCfg risk.Config, store *tle.Store,
	window time.Duration, logger *slog.Logger) *Handlers {
	return &Handlers{
		gate:     gate,
		prop:     prop,
		pipeline: pipeline,
		riskCfg:  riskCfg,
		store:    store,
		window:   window,
		logger:   logger,
	}
}

type stateJSON struct {
	Epoch    time.Time  `json:"epoch"`
	Position [3]float64 `json:"position_km"`
	Velocity [3]float64 `json:"velocity_km_s"`
}

func (s stateJSON) toState(objectID string) orbit.StateVector {
	return orbit.StateVector{
		ObjectID: objectID,
		Epoch:    s.Epoch,
		Position: orbit.Vec3(s.Position),
		Velocity: orbit.Vec3(s.Velocity),
	}
}

func stateToJSON(sv orbit.StateVector) stateJSON {
	return stateJSON{
		Epoch:    sv.Epoch,
		Position: [3]float64(sv.Position),
		Velocity: [3]float64(sv.Velocity),
	}
}

type objectJSON struct {
	ObjectID   string         `json:"object_id"`
	Epoch      time.Time      `json:"epoch"`
	Position   [3]float64     `json:"position_km"`
	Velocity   [3]float64     `json:"velocity_km_s"`
	Cr         float64        `json:"cr,omitempty"`
	AreaToMass float64        `json:"area_to_mass_m2_kg,omitempty"`
	Covariance *[3][3]float64 `json:"covariance_km2,omitempty"`
}

func (o objectJSON) state() orbit.StateVector {
	return orbit.StateVector{
		ObjectID: o.ObjectID,
		Epoch:    o.Epoch,
		Position: orbit.Vec3(o.Position),
		Velocity: orbit.Vec3(o.Velocity),
	}
}

func (o objectJSON) props() orbit.PhysicalObjectProperties {
	return orbit.PhysicalObjectProperties{Cr: o.Cr, AreaToMass: o.AreaToMass}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

type validateRequest struct {
	ObjectID      string     `json:"object_id"`
	SemiMajorAxis float64    `json:"semi_major_axis_km"`
	Eccentricity  float64    `json:"eccentricity"`
	Inclination   float64    `json:"inclination_deg"`
	AuthToken     string     `json:"auth_token"`
	State         *stateJSON `json:"state,omitempty"`
}

type validateResponse struct {
	ObjectID string `json:"object_id"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Validate admits or rejects one ingress record.
func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	greq := validate.Request{
		ObjectID:      req.ObjectID,
		SemiMajorAxis: req.SemiMajorAxis,
		Eccentricity:  req.Eccentricity,
		Inclination:   req.Inclination,
		Token:         req.AuthToken,
	}
	if req.State != nil {
		sv := req.State.toState(req.ObjectID)
		greq.State = &sv
	}

	dec := h.gate.Admit(greq)
	metrics.RecordValidation(string(dec.Outcome))

	h.logger.Info("validation decision",
		"component", "api",
		"object_id", req.ObjectID,
		"outcome", string(dec.Outcome),
		"reason", string(dec.Reason),
	)

	writeJSON(w, http.StatusOK, validateResponse{
		ObjectID: req.ObjectID,
		Outcome:  string(dec.Outcome),
		Reason:   string(dec.Reason),
		Detail:   dec.Detail,
	})
}

type propagateRequest struct {
	Duration string       `json:"duration"`
	Objects  []objectJSON `json:"objects"`
}

type ephemerisJSON struct {
	ObjectID string    `json:"object_id"`
	Samples  int       `json:"samples"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Final    stateJSON `json:"final"`
}

type objectErrorJSON struct {
	ObjectID string `json:"object_id"`
	Error    string `json:"error"`
}

type propagateResponse struct {
	RunID       string            `json:"run_id"`
	Ephemerides []ephemerisJSON   `json:"ephemerides"`
	Errors      []objectErrorJSON `json:"errors,omitempty"`
}

// Propagate runs the numerical propagator over a batch of objects.
func (h *Handlers) Propagate(w http.ResponseWriter, r *http.Request) {
	var req propagateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Objects) == 0 {
		writeError(w, http.StatusBadRequest, "objects must not be empty")
		return
	}
	duration, err := time.ParseDuration(req.Duration)
	if err != nil || duration <= 0 {
		writeError(w, http.StatusBadRequest, "duration must be a positive Go duration, e.g. \"90m\"")
		return
	}

	runID := uuid.NewString()
	items := make([]propagate.BatchItem, 0, len(req.Objects))
	for _, o := range req.Objects {
		items = append(items, propagate.BatchItem{State: o.state(), Props: o.props()})
	}

	start := time.Now()
	ephs, batchErrs := h.prop.PropagateBatch(r.Context(), items, duration)
	metrics.RecordPropagation(time.Since(start), len(ephs), len(batchErrs))

	resp := propagateResponse{RunID: runID}
	for _, e := range ephs {
		resp.Ephemerides = append(resp.Ephemerides, ephemerisJSON{
			ObjectID: e.ObjectID,
			Samples:  len(e.Samples),
			Start:    e.Start(),
			End:      e.End(),
			Final:    stateToJSON(e.Last()),
		})
	}
	for _, be := range batchErrs {
		resp.Errors = append(resp.Errors, objectErrorJSON{ObjectID: be.ObjectID, Error: be.Err.Error()})
	}

	h.logger.Info("propagation batch complete",
		"component", "api",
		"run_id", runID,
		"objects", len(items),
		"succeeded", len(ephs),
		"failed", len(batchErrs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, resp)
}

type screenRequest struct {
	Window  string       `json:"window,omitempty"`
	Objects []objectJSON `json:"objects,omitempty"`
}

type assessmentJSON struct {
	PrimaryID     string    `json:"primary_id"`
	SecondaryID   string    `json:"secondary_id"`
	TCA           time.Time `json:"tca"`
	MissDistance  float64   `json:"miss_distance_km"`
	RelativeSpeed float64   `json:"relative_speed_km_s"`
	PcMonteCarlo  float64   `json:"pc_monte_carlo"`
	PcUpperBound  float64   `json:"pc_upper_bound"`
	Tier          string    `json:"tier"`
}

type pairErrorJSON struct {
	PrimaryID   string `json:"primary_id"`
	SecondaryID string `json:"secondary_id"`
	Error       string `json:"error"`
}

type screenResponse struct {
	RunID         string           `json:"run_id"`
	PairsTotal    int              `json:"pairs_total"`
	PairsScreened int              `json:"pairs_screened"`
	PairsRefined  int              `json:"pairs_refined"`
	Assessments   []assessmentJSON `json:"assessments"`
	Errors        []pairErrorJSON  `json:"errors,omitempty"`
}

// Screen runs the two-stage conjunction screen plus the probability engine.
// With no objects in the body, the loaded TLE catalog is screened instead.
func (h *Handlers) Screen(w http.ResponseWriter, r *http.Request) {
	var req screenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	window := h.window
	if req.Window != "" {
		d, err := time.ParseDuration(req.Window)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "window must be a positive Go duration, e.g. \"24h\"")
			return
		}
		window = d
	}

	catalog, err := h.screenCatalog(req.Objects)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(catalog) < 2 {
		writeError(w, http.StatusBadRequest, "need at least two objects to screen")
		return
	}

	runID := uuid.NewString()
	start := time.Now()
	res, err := h.pipeline.ScreenWindow(r.Context(), catalog, window)
	if err != nil {
		var em *conjunction.EpochMismatchError
		if errors.As(err, &em) {
			writeError(w, http.StatusBadRequest, em.Error())
			return
		}
		// Cancellation: report what completed.
		h.logger.Warn("screening interrupted",
			"component", "api", "run_id", runID, "error", err)
	}

	assessments, assessErrs := risk.AssessAll(res.Candidates, h.riskCfg)
	metrics.RecordScreening(res.PairsScreened, res.PairsRefined, len(res.Candidates))

	resp := screenResponse{
		RunID:         runID,
		PairsTotal:    res.PairsTotal,
		PairsScreened: res.PairsScreened,
		PairsRefined:  res.PairsRefined,
		Assessments:   make([]assessmentJSON, 0, len(assessments)),
	}
	for _, a := range assessments {
		resp.Assessments = append(resp.Assessments, assessmentJSON{
			PrimaryID:     a.Candidate.PrimaryID,
			SecondaryID:   a.Candidate.SecondaryID,
			TCA:           a.Candidate.TCA,
			MissDistance:  a.Candidate.MissDistance,
			RelativeSpeed: a.Candidate.RelativeSpeed,
			PcMonteCarlo:  a.MonteCarlo.Pc,
			PcUpperBound:  a.UpperBound.Pc,
			Tier:          string(a.Tier),
		})
	}
	for _, pe := range res.Errors {
		resp.Errors = append(resp.Errors, pairErrorJSON{
			PrimaryID: pe.PrimaryID, SecondaryID: pe.SecondaryID, Error: pe.Err.Error(),
		})
	}
	for _, ae := range assessErrs {
		resp.Errors = append(resp.Errors, pairErrorJSON{Error: ae.Error()})
	}

	h.logger.Info("screening run complete",
		"component", "api",
		"run_id", runID,
		"objects", len(catalog),
		"pairs_total", res.PairsTotal,
		"candidates", len(res.Candidates),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, resp)
}

// screenCatalog builds the screening input, falling back to the TLE store
// when the request carries no explicit objects.
func (h *Handlers) screenCatalog(objects []objectJSON) ([]conjunction.Object, error) {
	if len(objects) > 0 {
		out := make([]conjunction.Object, 0, len(objects))
		for _, o := range objects {
			obj := conjunction.Object{State: o.state(), Props: o.props()}
			if o.Covariance != nil {
				cov := conjunction.Covariance3(*o.Covariance)
				obj.Covariance = &cov
			}
			out = append(out, obj)
		}
		return out, nil
	}

	cat := h.store.Get()
	if cat == nil {
		return nil, fmt.Errorf("no objects in request and no TLE catalog loaded")
	}
	now := time.Now().UTC()
	out := make([]conjunction.Object, 0, len(cat.Entries))
	for _, entry := range cat.Entries {
		sv, err := tle.StateAt(entry, now)
		if err != nil {
			h.logger.Warn("skipping catalog entry",
				"component", "api", "norad_id", entry.NORADID, "error", err)
			continue
		}
		out = append(out, conjunction.Object{State: sv})
	}
	return out, nil
}

type catalogLoadResponse struct {
	Source   string    `json:"source"`
	Entries  int       `json:"entries"`
	EpochMin time.Time `json:"epoch_min"`
	EpochMax time.Time `json:"epoch_max"`
}

// CatalogLoad ingests a TLE catalog from the request body (plain text,
// 3-line groups) and makes it the current catalog.
func (h *Handlers) CatalogLoad(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	h.store.Lock()
	defer h.store.Unlock()

	entries, err := tle.Parse(r.Body, h.logger)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse TLE catalog: %v", err))
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusBadRequest, "no valid TLE entries in body")
		return
	}

	rng := tle.EpochRange{Min: entries[0].Epoch, Max: entries[0].Epoch}
	for _, e := range entries[1:] {
		if e.Epoch.Before(rng.Min) {
			rng.Min = e.Epoch
		}
		if e.Epoch.After(rng.Max) {
			rng.Max = e.Epoch
		}
	}

	cat := &tle.Catalog{
		Source:     "upload",
		LoadedAt:   time.Now().UTC(),
		EpochRange: rng,
		Entries:    entries,
	}
	h.store.Set(cat)
	metrics.SetCatalogAge(0)

	h.logger.Info("catalog loaded",
		"component", "api",
		"entries", len(entries),
		"epoch_min", rng.Min,
		"epoch_max", rng.Max,
	)
	writeJSON(w, http.StatusOK, catalogLoadResponse{
		Source:   cat.Source,
		Entries:  len(entries),
		EpochMin: rng.Min,
		EpochMax: rng.Max,
	})
}
