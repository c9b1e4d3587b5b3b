package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shoplist/shoplist/internal/models"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	catalog
}

func OpenSQLite(dsn string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// WAL is persistent in the file; the connection pragmas ride on the DSN
	// so every pooled connection gets them.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %s: %w", pragma, err)
		}
	}
	s := &SQLiteDB{}
	s.catalog = catalog{
		db:   db,
		bind: func(q string) string { return q },
		inTx: s.inTx,
	}
	return s, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

func (s *SQLiteDB) Close() error { return s.db.Close() }

func (s *SQLiteDB) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stores (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	store_id INTEGER NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	ord INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	store_id INTEGER REFERENCES stores(id) ON DELETE CASCADE,
	section_id INTEGER REFERENCES sections(id) ON DELETE SET NULL,
	name TEXT NOT NULL,
	checked BOOLEAN NOT NULL DEFAULT FALSE,
	ord INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK (section_id IS NULL OR store_id IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS organize_jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	store_id INTEGER NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'queued',
	attempt_count INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	last_error TEXT NOT NULL DEFAULT '',
	next_attempt_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	started_at DATETIME,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sections_store_ord ON sections(store_id, ord);
CREATE INDEX IF NOT EXISTS idx_items_scope_ord ON items(store_id, section_id, checked, ord);
CREATE INDEX IF NOT EXISTS idx_items_section ON items(section_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_organize_jobs_claim ON organize_jobs(status, next_attempt_at, id);
CREATE INDEX IF NOT EXISTS idx_organize_jobs_store ON organize_jobs(store_id, created_at DESC);
`

// inTx runs fn in a transaction, retrying the whole unit when SQLite reports
// the database busy. A deferred transaction that read a stale snapshot fails
// with SQLITE_BUSY on its first write, so two allocations in the same scope
// can never both commit the same ord.
func (s *SQLiteDB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	const maxAttempts = 20
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			if isSQLiteBusyErr(err) && attempt < maxAttempts-1 {
				if err := busyBackoff(ctx, attempt); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if err := fn(tx); err != nil {
			tx.Rollback()
			if isSQLiteBusyErr(err) && attempt < maxAttempts-1 {
				if err := busyBackoff(ctx, attempt); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			tx.Rollback()
			if isSQLiteBusyErr(err) && attempt < maxAttempts-1 {
				if err := busyBackoff(ctx, attempt); err != nil {
					return err
				}
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("sqlite transaction: retries exhausted")
}

// busyBackoff waits before the next busy retry, giving up when ctx ends.
func busyBackoff(ctx context.Context, attempt int) error {
	t := time.NewTimer(time.Duration(attempt+1) * 10 * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isSQLiteBusyErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "SQLITE_BUSY") || strings.Contains(s, "database is locked")
}

// --- Organize jobs ---

func (s *SQLiteDB) EnqueueOrganizeJob(ctx context.Context, job *models.OrganizeJob) error {
	if job == nil {
		return fmt.Errorf("organize job is nil")
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	nextAttemptAt := job.NextAttemptAt
	if nextAttemptAt.IsZero() {
		nextAttemptAt = time.Now().UTC()
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO organize_jobs (store_id, status, attempt_count, max_attempts, last_error, next_attempt_at)
		 VALUES (?, ?, 0, ?, '', datetime(?))
		 RETURNING id`,
		job.StoreID, models.OrganizeJobQueued, maxAttempts, sqliteTimestamp(nextAttemptAt),
	).Scan(&id)
	if err != nil {
		return err
	}
	loaded, err := s.GetOrganizeJob(ctx, id)
	if err != nil {
		return err
	}
	*job = *loaded
	return nil
}

func (s *SQLiteDB) ClaimOrganizeJob(ctx context.Context) (*models.OrganizeJob, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE organize_jobs
		 SET status = ?,
			 attempt_count = attempt_count + 1,
			 started_at = CURRENT_TIMESTAMP,
			 completed_at = NULL,
			 updated_at = CURRENT_TIMESTAMP
		 WHERE id = (
			 SELECT id
			 FROM organize_jobs
			 WHERE status = ?
			   AND datetime(next_attempt_at) <= CURRENT_TIMESTAMP
			 ORDER BY next_attempt_at ASC, id ASC
			 LIMIT 1
		 )
		 RETURNING `+organizeJobColumns,
		models.OrganizeJobInProgress, models.OrganizeJobQueued,
	)
	job, err := scanOrganizeJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if isSQLiteBusyErr(err) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func (s *SQLiteDB) CompleteOrganizeJob(ctx context.Context, jobID int64, status models.OrganizeJobStatus, errMsg string) error {
	trimmedErr, err := terminalJobError(status, errMsg)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE organize_jobs
		 SET status = ?,
			 last_error = ?,
			 completed_at = CURRENT_TIMESTAMP,
			 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		status, trimmedErr, jobID, models.OrganizeJobInProgress,
	)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

func (s *SQLiteDB) RequeueOrganizeJob(ctx context.Context, jobID int64, errMsg string, nextAttemptAt time.Time) error {
	trimmedErr := strings.TrimSpace(errMsg)
	if trimmedErr == "" {
		trimmedErr = "job failed"
	}
	if nextAttemptAt.IsZero() {
		nextAttemptAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE organize_jobs
		 SET status = CASE
				 WHEN attempt_count >= max_attempts THEN ?
				 ELSE ?
			 END,
			 last_error = ?,
			 next_attempt_at = CASE
				 WHEN attempt_count >= max_attempts THEN next_attempt_at
				 ELSE datetime(?)
			 END,
			 started_at = NULL,
			 completed_at = CASE
				 WHEN attempt_count >= max_attempts THEN CURRENT_TIMESTAMP
				 ELSE NULL
			 END,
			 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		models.OrganizeJobFailed, models.OrganizeJobQueued, trimmedErr, sqliteTimestamp(nextAttemptAt), jobID, models.OrganizeJobInProgress,
	)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

func (s *SQLiteDB) GetOrganizeJob(ctx context.Context, id int64) (*models.OrganizeJob, error) {
	return scanOrganizeJob(s.db.QueryRowContext(ctx,
		`SELECT `+organizeJobColumns+` FROM organize_jobs WHERE id = ?`, id))
}

func sqliteTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
