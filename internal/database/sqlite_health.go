package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/shoplist/shoplist/internal/models"
)

func (s *SQLiteDB) OrganizeQueueStats(ctx context.Context) (OrganizeQueueStats, error) {
	var stats OrganizeQueueStats
	var oldestQueued sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT
			 COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS queued,
			 COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS in_progress,
			 COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed,
			 MIN(CASE WHEN status = ? THEN datetime(next_attempt_at) END) AS oldest_queued_at
		 FROM organize_jobs`,
		models.OrganizeJobQueued,
		models.OrganizeJobInProgress,
		models.OrganizeJobFailed,
		models.OrganizeJobQueued,
	).Scan(&stats.Queued, &stats.InProgress, &stats.Failed, &oldestQueued)
	if err != nil {
		return OrganizeQueueStats{}, err
	}
	if oldestQueued.Valid {
		if t, err := time.Parse("2006-01-02 15:04:05", oldestQueued.String); err == nil {
			t = t.UTC()
			stats.OldestQueuedAt = &t
		}
	}
	return stats, nil
}
