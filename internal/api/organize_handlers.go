package api

import (
	"database/sql"
	"errors"
	"net/http"
)

func (s *Server) handleOrganize(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parsePathPositiveInt64(w, r, "store_id", "store id")
	if !ok {
		return
	}
	async, ok := parseOptionalQueryBool(w, r, "async")
	if !ok {
		return
	}

	if !async {
		if _, err := s.organizer.Organize(r.Context(), storeID); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if s.queue == nil {
		jsonError(w, "asynchronous organize is not enabled", http.StatusServiceUnavailable)
		return
	}
	if _, err := s.db.GetStore(r.Context(), storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "store not found", http.StatusNotFound)
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	job, err := s.queue.EnqueueOrganize(r.Context(), storeID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "organize job enqueued",
		"job_id", job.ID, "store_id", storeID, "request_id", requestIDFromContext(r.Context()))
	jsonResponse(w, http.StatusAccepted, job)
}

func (s *Server) handleGetOrganizeJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathPositiveInt64(w, r, "id", "job id")
	if !ok {
		return
	}
	if s.queue == nil {
		jsonError(w, "organize job not found", http.StatusNotFound)
		return
	}
	job, err := s.queue.Status(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if job == nil {
		jsonError(w, "organize job not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, job)
}
