package api

import (
	"context"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Queue     healthQueue    `json:"queue"`
	Database  healthDatabase `json:"database"`
	Errors    []string       `json:"errors,omitempty"`
}

type healthQueue struct {
	Enabled               bool    `json:"enabled"`
	Depth                 int64   `json:"depth"`
	InProgress            int64   `json:"in_progress"`
	Failed                int64   `json:"failed"`
	OldestQueuedAgeSecond float64 `json:"oldest_queued_age_seconds"`
}

type healthDatabase struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
	WaitDurationMS  int64 `json:"wait_duration_ms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Queue:     healthQueue{Enabled: s.queue != nil},
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "health ping failed", "error", err)
		resp.Errors = append(resp.Errors, "database_ping")
	}

	stats, err := s.db.OrganizeQueueStats(ctx)
	if err != nil {
		resp.Errors = append(resp.Errors, "organize_queue_stats")
	} else {
		resp.Queue.Depth = stats.Queued
		resp.Queue.InProgress = stats.InProgress
		resp.Queue.Failed = stats.Failed
		if stats.OldestQueuedAt != nil {
			age := time.Since(stats.OldestQueuedAt.UTC()).Seconds()
			if age < 0 {
				age = 0
			}
			resp.Queue.OldestQueuedAgeSecond = age
		}
	}

	pool := s.db.DBStats()
	resp.Database = healthDatabase{
		OpenConnections: pool.OpenConnections,
		InUse:           pool.InUse,
		Idle:            pool.Idle,
		WaitCount:       pool.WaitCount,
		WaitDurationMS:  pool.WaitDuration.Milliseconds(),
	}

	if len(resp.Errors) > 0 {
		resp.Status = "degraded"
		jsonResponse(w, http.StatusServiceUnavailable, resp)
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}
