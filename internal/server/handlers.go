package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/holdiq/holdiq/internal/modules/subscribers"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "holdiq",
	})
}

// handleRecentFilings returns the most recently filed 13F reports.
// GET /api/filings/recent?limit=50
func (s *Server) handleRecentFilings(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	rows, err := s.filings.Recent13F(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(rows),
		"filings": rows,
	})
}

// handleManagerSnapshot returns the holdings snapshot for a manager.
// GET /api/managers/{cik}/snapshot?period=2024-09-30
func (s *Server) handleManagerSnapshot(w http.ResponseWriter, r *http.Request) {
	cik := chi.URLParam(r, "cik")
	period := r.URL.Query().Get("period")

	snapshot, err := s.snapshots.Build(cik, period)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snapshot.Stats.PositionCount == 0 {
		s.writeError(w, http.StatusNotFound, "no holdings found for manager")
		return
	}

	s.writeJSON(w, http.StatusOK, snapshot)
}

// handleManagerDeltas returns quarter-over-quarter position changes.
// Records come back grouped new, increase, decrease, closed, each by
// descending absolute value change.
// GET /api/managers/{cik}/deltas?period=2024-09-30
func (s *Server) handleManagerDeltas(w http.ResponseWriter, r *http.Request) {
	cik := chi.URLParam(r, "cik")
	period := r.URL.Query().Get("period")
	if period == "" {
		s.writeError(w, http.StatusBadRequest, "period query parameter is required")
		return
	}

	records, err := s.deltas.ListForPeriod(cik, period)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cik":           cik,
		"report_period": period,
		"count":         len(records),
		"deltas":        records,
	})
}

// handleRebuildManagerDeltas recomputes every adjacent quarter pair for
// one manager synchronously. Single-manager rebuilds are quick enough
// to hold the request open, unlike the full rebuild job.
// POST /api/managers/{cik}/deltas/rebuild
func (s *Server) handleRebuildManagerDeltas(w http.ResponseWriter, r *http.Request) {
	cik := chi.URLParam(r, "cik")

	result, err := s.deltaSvc.RebuildForManager(r.Context(), cik)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cik":             cik,
		"pairs_processed": result.PairsProcessed,
		"pairs_failed":    result.PairsFailed,
		"rows_written":    result.RowsWritten,
	})
}

// handleManagerBrief returns the stored brief for a manager.
// GET /api/managers/{cik}/brief?period=2024-09-30
func (s *Server) handleManagerBrief(w http.ResponseWriter, r *http.Request) {
	cik := chi.URLParam(r, "cik")
	period := r.URL.Query().Get("period")

	brief, err := s.briefs.Latest(cik, period)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if brief == nil {
		s.writeError(w, http.StatusNotFound, "no brief found for manager")
		return
	}

	s.writeJSON(w, http.StatusOK, brief)
}

// handleListSubscribers lists all subscribers.
// GET /api/subscribers
func (s *Server) handleListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subs.All()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(subs),
		"subscribers": subs,
	})
}

// handleUpsertSubscriber adds or updates a subscription.
// POST /api/subscribers
func (s *Server) handleUpsertSubscriber(w http.ResponseWriter, r *http.Request) {
	var sub subscribers.Subscriber
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := s.subs.Upsert(sub)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"id":     id,
	})
}

// handleDeactivateSubscriber deactivates a subscription.
// DELETE /api/subscribers?email=a@b.c&cik=1067983
func (s *Server) handleDeactivateSubscriber(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	cik := r.URL.Query().Get("cik")
	if email == "" || cik == "" {
		s.writeError(w, http.StatusBadRequest, "email and cik query parameters are required")
		return
	}

	if err := s.subs.Deactivate(email, cik); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// handleTriggerJob runs a registered background job immediately.
// POST /api/jobs/{name}
func (s *Server) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	job, ok := s.jobs[name]
	if !ok || s.runner == nil {
		s.writeError(w, http.StatusNotFound, "unknown job: "+name)
		return
	}

	// Jobs can run for minutes; don't hold the request open.
	go func() {
		if err := s.runner.RunNow(job); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("Manually triggered job failed")
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "triggered",
		"job":    name,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"status":  "error",
		"message": message,
	})
}
