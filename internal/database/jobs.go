package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/shoplist/shoplist/internal/models"
)

const organizeJobColumns = `id, store_id, status, attempt_count, max_attempts, last_error, next_attempt_at, created_at, updated_at, started_at, completed_at`

func scanOrganizeJob(row *sql.Row) (*models.OrganizeJob, error) {
	var job models.OrganizeJob
	var status string
	var startedAt sql.NullTime
	var completedAt sql.NullTime
	if err := row.Scan(
		&job.ID,
		&job.StoreID,
		&status,
		&job.AttemptCount,
		&job.MaxAttempts,
		&job.LastError,
		&job.NextAttemptAt,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	job.Status = models.OrganizeJobStatus(status)
	if startedAt.Valid {
		v := startedAt.Time
		job.StartedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		job.CompletedAt = &v
	}
	return &job, nil
}

func terminalJobError(status models.OrganizeJobStatus, errMsg string) (string, error) {
	trimmed := strings.TrimSpace(errMsg)
	switch status {
	case models.OrganizeJobCompleted:
		return "", nil
	case models.OrganizeJobFailed:
		if trimmed == "" {
			trimmed = "job failed"
		}
		return trimmed, nil
	default:
		return "", fmt.Errorf("unsupported terminal status %q", status)
	}
}
