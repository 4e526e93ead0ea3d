/*
handlers.go - HTTP API handlers for the insight engine

PURPOSE:
  Exposes the sync manager, revenue engine and cache store over REST.
  Handlers parse the request, delegate to domain logic and serialize the
  response; no business rules live here.

ERROR HANDLING:
  Every operation returns either a usable result or a labeled error -
  never a blank failure. Degradations that still yield data (source
  unreachable, cache write failure) come back as HTTP 200 with a status
  or warning string; only requests that cannot produce data at all get an
  error status:
  - 400: invalid input (bad date, bad JSON)
  - 422: schema-missing - the computation's required column is absent
  - 500: internal failures with no usable result

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/meridian/insight-engine/dataset"
	"github.com/meridian/insight-engine/report"
	"github.com/meridian/insight-engine/revenue"
	"github.com/meridian/insight-engine/syncer"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the slice of the cache store the handlers read and write
// directly. Snapshot and aggregate writes go through the Manager and
// Recalculator instead.
type Store interface {
	LoadSyncState(ctx context.Context) (*time.Time, error)
	LoadRecalcState(ctx context.Context) (*time.Time, error)
	LoadJobRates(ctx context.Context) (revenue.RateTable, error)
	SaveJobRates(ctx context.Context, rates revenue.RateTable) error
	MergeJobTitles(ctx context.Context, titles []string) error
	LoadAggregatesRange(ctx context.Context, from, to dataset.Day) (revenue.Aggregates, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  Store
	Syncer *syncer.Manager
	Recalc *revenue.Recalculator
}

func NewHandler(store Store, sync *syncer.Manager, recalc *revenue.Recalculator) *Handler {
	return &Handler{Store: store, Syncer: sync, Recalc: recalc}
}

// =============================================================================
// SNAPSHOT FRESHNESS
// =============================================================================

// Refresh ensures the snapshot is fresh and reports what we have.
// POST /api/refresh?force=true
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	snap, asOf, err := h.Syncer.EnsureFresh(r.Context(), force)
	status := "ok"
	if err != nil {
		if !dataset.IsRecoverable(err) {
			writeError(w, http.StatusInternalServerError, "Refresh failed", err)
			return
		}
		// Degraded but usable: label it instead of failing the request.
		status = fmt.Sprintf("could not refresh: serving cached data (%v)", err)
	}

	counts := make(map[string]int)
	for _, c := range snap.Collections() {
		counts[c.Name] = c.Len()
	}
	writeJSON(w, http.StatusOK, RefreshResponse{
		Status: status,
		AsOf:   asOf.UTC().Format(time.RFC3339),
		Counts: counts,
	})
}

// Status reports the sync and recalculation instants.
// GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{}
	if at, err := h.Store.LoadSyncState(ctx); err == nil && at != nil {
		s := at.UTC().Format(time.RFC3339)
		resp.LastSync = &s
	}
	if at, err := h.Store.LoadRecalcState(ctx); err == nil && at != nil {
		s := at.UTC().Format(time.RFC3339)
		resp.LastRecalc = &s
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// FINANCIALS
// =============================================================================

// GetFinancials serves the aggregate cache, optionally filtered by date
// range. A range excluding all cached days degrades to the full cache.
// GET /api/financials?start=2024-01-01&end=2024-01-31
func (h *Handler) GetFinancials(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	aggs, err := h.Store.LoadAggregatesRange(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load financials cache", err)
		return
	}
	writeJSON(w, http.StatusOK, toFinancialsResponse(aggs, ""))
}

// Recalculate brings the aggregate cache up to date and serves the result.
// POST /api/financials/recalculate
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var warning string
	snap, asOf, err := h.Syncer.EnsureFresh(ctx, false)
	if err != nil {
		if !dataset.IsRecoverable(err) {
			writeError(w, http.StatusInternalServerError, "Failed to load data", err)
			return
		}
		warning = fmt.Sprintf("could not refresh: computed from cached data (%v)", err)
	}

	rates, err := h.ratesForSnapshot(ctx, snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load job rates", err)
		return
	}

	aggs, err := h.Recalc.Recalculate(ctx, snap, rates, &asOf)
	if err != nil {
		switch {
		case errors.Is(err, dataset.ErrSchemaMissing):
			writeError(w, http.StatusUnprocessableEntity, "Timesheet data is missing a required column", err)
			return
		case errors.Is(err, dataset.ErrPersistence):
			// In-memory results are still valid for this session.
			warning = joinWarnings(warning, fmt.Sprintf("results not cached (%v)", err))
		default:
			writeError(w, http.StatusInternalServerError, "Recalculation failed", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toFinancialsResponse(aggs, warning))
}

// =============================================================================
// JOB RATES
// =============================================================================

// GetRates serves the rate table after folding in any job titles newly
// observed on employee records (with empty rates, never overwriting).
// GET /api/rates
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, _, err := h.Syncer.EnsureFresh(ctx, false)
	if err == nil || dataset.IsRecoverable(err) {
		if err := h.Store.MergeJobTitles(ctx, revenue.HarvestTitles(snap.Employees)); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to merge job titles", err)
			return
		}
	}

	rates, err := h.Store.LoadJobRates(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load job rates", err)
		return
	}
	writeJSON(w, http.StatusOK, toRatesResponse(rates))
}

// PutRates replaces the rate table with the user's edit.
// PUT /api/rates
func (h *Handler) PutRates(w http.ResponseWriter, r *http.Request) {
	var req PutRatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rates payload", err)
		return
	}

	rates := fromRatesRequest(req)
	if err := h.Store.SaveJobRates(r.Context(), rates); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save job rates", err)
		return
	}
	writeJSON(w, http.StatusOK, toRatesResponse(rates))
}

// =============================================================================
// REPORTS AND SNAPSHOT PASS-THROUGH
// =============================================================================

// QualityReport serves the data-quality findings.
// GET /api/reports/quality
func (h *Handler) QualityReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.freshSnapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.BuildQuality(snap))
}

// LongEntries serves timesheet lines longer than the threshold (default:
// one 8-hour workday).
// GET /api/reports/long-entries?threshold=8
func (h *Handler) LongEntries(w http.ResponseWriter, r *http.Request) {
	threshold := 8.0
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "Invalid threshold", err)
			return
		}
		threshold = parsed
	}

	snap, ok := h.freshSnapshot(w, r)
	if !ok {
		return
	}
	entries := report.BuildLongEntries(snap, threshold)
	if entries == nil {
		entries = []report.LongEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListProjects returns the raw project records for filter widgets.
// GET /api/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.freshSnapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, recordsOrEmpty(snap.Projects))
}

// ListEmployees returns the raw employee records for filter widgets.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.freshSnapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, recordsOrEmpty(snap.Employees))
}

// =============================================================================
// HELPERS
// =============================================================================

// freshSnapshot runs the freshness policy and handles unrecoverable
// failures; recoverable degradations fall through with cached data.
func (h *Handler) freshSnapshot(w http.ResponseWriter, r *http.Request) (dataset.Snapshot, bool) {
	snap, _, err := h.Syncer.EnsureFresh(r.Context(), false)
	if err != nil && !dataset.IsRecoverable(err) {
		writeError(w, http.StatusInternalServerError, "Failed to load data", err)
		return dataset.Snapshot{}, false
	}
	return snap, true
}

// ratesForSnapshot harvests new titles into the table, then loads it.
func (h *Handler) ratesForSnapshot(ctx context.Context, snap dataset.Snapshot) (revenue.RateTable, error) {
	if err := h.Store.MergeJobTitles(ctx, revenue.HarvestTitles(snap.Employees)); err != nil {
		return nil, err
	}
	return h.Store.LoadJobRates(ctx)
}

func parseRange(r *http.Request) (from, to dataset.Day, err error) {
	if raw := r.URL.Query().Get("start"); raw != "" {
		from, err = dataset.ParseDay(raw)
		if err != nil {
			return dataset.Day{}, dataset.Day{}, err
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		to, err = dataset.ParseDay(raw)
		if err != nil {
			return dataset.Day{}, dataset.Day{}, err
		}
	}
	return from, to, nil
}

func recordsOrEmpty(c dataset.Collection) []dataset.Record {
	if c.Records == nil {
		return []dataset.Record{}
	}
	return c.Records
}

func joinWarnings(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
