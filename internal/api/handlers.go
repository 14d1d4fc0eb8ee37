// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/basketgraph/internal/checkpoint"
	"github.com/tomtom215/basketgraph/internal/recommend"
	"github.com/tomtom215/basketgraph/internal/recommend/pipeline"
	"github.com/tomtom215/basketgraph/internal/recommend/storage"
	"github.com/tomtom215/basketgraph/internal/validation"
)

// RunStore reads run history. *checkpoint.Ledger implements it.
type RunStore interface {
	Latest(ctx context.Context) (*checkpoint.Run, error)
	Get(ctx context.Context, runID string) (*checkpoint.Run, error)
	Runs(ctx context.Context, limit int) ([]checkpoint.Run, error)
}

// ReportSource exposes the last in-process run. *pipeline.Runner
// implements it.
type ReportSource interface {
	LastReport() *pipeline.Report
}

// ModelCatalog lists stored models. *storage.Registry implements it.
type ModelCatalog interface {
	Versions(ctx context.Context) ([]storage.ModelMetadata, error)
}

// RunTrigger queues an on-demand run. *services.SchedulerService
// implements it.
type RunTrigger interface {
	Trigger() bool
}

// CustomerPlacer assigns customers to stored clusters. *pipeline.Assigner
// implements it.
type CustomerPlacer interface {
	Assign(ctx context.Context, in *recommend.Inputs, version int, customerIDs []string) ([]pipeline.Placement, error)
}

// Deps are the Handler's collaborators. A nil dependency makes its
// endpoints answer 503.
type Deps struct {
	Runs     RunStore
	Reports  ReportSource
	Models   ModelCatalog
	Trigger  RunTrigger
	Source   pipeline.Source
	Assigner CustomerPlacer
}

// Handler implements the ops endpoints.
type Handler struct {
	deps      Deps
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps, startTime: time.Now()}
}

const maxAssignBody = 1 << 20

type runsQuery struct {
	Limit int `json:"limit" validate:"min=1,max=500"`
}

// AssignRequest is the body of POST /api/v1/assign.
type AssignRequest struct {
	// CustomerIDs empty places every customer with purchases.
	CustomerIDs []string `json:"customer_ids" validate:"max=1000,dive,required"`

	// ModelVersion 0 uses the latest stored version.
	ModelVersion int `json:"model_version" validate:"gte=0"`
}

type fieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func validationDetails(se *validation.StructError) []fieldDetail {
	errs := se.Errors()
	out := make([]fieldDetail, 0, len(errs))
	for i := range errs {
		out = append(out, fieldDetail{Field: errs[i].Field(), Message: errs[i].Error()})
	}
	return out
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// Readyz reports whether the run ledger can be read.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Runs == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Run ledger not configured", nil)
		return
	}
	run, err := h.deps.Runs.Latest(r.Context())
	if err != nil && !errors.Is(err, checkpoint.ErrRunNotFound) {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Run ledger unavailable", err)
		return
	}
	status := map[string]interface{}{"status": "ready"}
	if run != nil {
		status["last_run_id"] = run.ID
		status["last_run_status"] = run.Status
	}
	rw.Success(status)
}

// ListRuns returns run history, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Runs == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Run ledger not configured", nil)
		return
	}

	q := runsQuery{Limit: 20}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "limit must be an integer", nil)
			return
		}
		q.Limit = n
	}
	if se := validation.ValidateStruct(&q); se != nil {
		rw.ValidationError("Invalid query parameters", validationDetails(se))
		return
	}

	runs, err := h.deps.Runs.Runs(r.Context(), q.Limit)
	if err != nil {
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "Failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []checkpoint.Run{}
	}
	rw.List(runs, len(runs))
}

// LatestRun returns the most recent run with its stage checkpoints.
func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	h.writeRun(w, r, func(ctx context.Context) (*checkpoint.Run, error) {
		return h.deps.Runs.Latest(ctx)
	})
}

// GetRun returns one run by ID.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	h.writeRun(w, r, func(ctx context.Context) (*checkpoint.Run, error) {
		return h.deps.Runs.Get(ctx, id)
	})
}

func (h *Handler) writeRun(w http.ResponseWriter, r *http.Request, get func(context.Context) (*checkpoint.Run, error)) {
	rw := NewResponseWriter(w, r)
	if h.deps.Runs == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Run ledger not configured", nil)
		return
	}
	run, err := get(r.Context())
	switch {
	case errors.Is(err, checkpoint.ErrRunNotFound):
		rw.Error(http.StatusNotFound, ErrCodeNotFound, "Run not found", nil)
	case err != nil:
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "Failed to read run", err)
	default:
		rw.Success(run)
	}
}

// TriggerRun queues an on-demand pipeline run.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Trigger == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Scheduler not running", nil)
		return
	}
	if !h.deps.Trigger.Trigger() {
		rw.Error(http.StatusConflict, ErrCodeConflict, "A run is already queued", nil)
		return
	}
	rw.Accepted(map[string]string{"status": "queued"})
}

type reportView struct {
	*pipeline.Report
	Counts    map[string]int    `json:"counts"`
	Checksums map[string]string `json:"checksums"`
}

// LastReport returns the report of the last run completed by this process.
func (h *Handler) LastReport(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rep := h.lastReport()
	if rep == nil {
		rw.Error(http.StatusNotFound, ErrCodeNotFound, "No run has completed in this process", nil)
		return
	}
	rw.Success(reportView{Report: rep, Counts: rep.Counts(), Checksums: rep.Checksums()})
}

func (h *Handler) lastReport() *pipeline.Report {
	if h.deps.Reports == nil {
		return nil
	}
	return h.deps.Reports.LastReport()
}

type recommendationView struct {
	Rank              int     `json:"rank"`
	ProductID         string  `json:"recommended_product"`
	ProductName       string  `json:"product_name,omitempty"`
	Brand             string  `json:"brand,omitempty"`
	L2                string  `json:"l2_category,omitempty"`
	L3                string  `json:"l3_category,omitempty"`
	TriggerProductID  string  `json:"trigger_product"`
	TriggerName       string  `json:"trigger_name,omitempty"`
	Support           float64 `json:"support"`
	Confidence        float64 `json:"confidence"`
	Lift              float64 `json:"lift"`
	Score             float64 `json:"score"`
	SuggestedQuantity int     `json:"recommended_qty"`
	Reason            string  `json:"reason"`
}

// CustomerRecommendations returns one customer's final recommendations
// from the last in-process run.
func (h *Handler) CustomerRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rep := h.lastReport()
	if rep == nil {
		rw.Error(http.StatusNotFound, ErrCodeNotFound, "No run has completed in this process", nil)
		return
	}

	id := chi.URLParam(r, "customerID")
	out := []recommendationView{}
	var clusterID string
	for i := range rep.Recommendations {
		rec := &rep.Recommendations[i]
		if rec.CustomerID != id {
			continue
		}
		clusterID = rec.Cluster.String()
		out = append(out, recommendationView{
			Rank:              rec.Rank,
			ProductID:         rec.ProductID,
			ProductName:       rec.ProductName,
			Brand:             rec.Brand,
			L2:                rec.L2,
			L3:                rec.L3,
			TriggerProductID:  rec.TriggerProductID,
			TriggerName:       rec.TriggerName,
			Support:           rec.Support,
			Confidence:        rec.Confidence,
			Lift:              rec.Lift,
			Score:             rec.Score,
			SuggestedQuantity: rec.SuggestedQuantity,
			Reason:            rec.Reason,
		})
	}
	rw.List(map[string]interface{}{
		"customer_id":     id,
		"cluster_id":      clusterID,
		"run_id":          rep.RunID,
		"recommendations": out,
	}, len(out))
}

// ListModels returns stored segment model versions, newest first.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Models == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Model registry not configured", nil)
		return
	}
	versions, err := h.deps.Models.Versions(r.Context())
	if err != nil {
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "Failed to list models", err)
		return
	}
	if versions == nil {
		versions = []storage.ModelMetadata{}
	}
	rw.List(versions, len(versions))
}

// Assign places customers with a stored model against freshly loaded
// inputs.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.deps.Assigner == nil || h.deps.Source == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Assignment not configured", nil)
		return
	}

	var req AssignRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAssignBody))
	if err := dec.Decode(&req); err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", nil)
		return
	}
	if se := validation.ValidateStruct(&req); se != nil {
		rw.ValidationError("Invalid assign request", validationDetails(se))
		return
	}

	in, err := h.deps.Source.Load(r.Context())
	if err != nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Failed to load inputs", err)
		return
	}
	placements, err := h.deps.Assigner.Assign(r.Context(), in, req.ModelVersion, req.CustomerIDs)
	switch {
	case errors.Is(err, storage.ErrNoModel):
		rw.Error(http.StatusNotFound, ErrCodeNotFound, "No stored model for that version", nil)
	case err != nil:
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "Assignment failed", err)
	default:
		rw.List(placements, len(placements))
	}
}
