package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shoplist/shoplist/internal/models"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// globalScopeLockKey is the advisory lock key for the global-unassigned item scope.
const globalScopeLockKey = 0x73686f70

type PostgresDB struct {
	catalog
}

func OpenPostgres(dsn string) (*PostgresDB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return newPostgresDB(db), nil
}

func newPostgresDB(db *sql.DB) *PostgresDB {
	p := &PostgresDB{}
	p.catalog = catalog{
		db:         db,
		bind:       rebindDollar,
		inTx:       p.inTx,
		forUpdate:  " FOR UPDATE",
		globalLock: "SELECT pg_advisory_xact_lock(" + strconv.Itoa(globalScopeLockKey) + ")",
	}
	return p
}

// rebindDollar rewrites ? placeholders as $1, $2, ...
func rebindDollar(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (p *PostgresDB) Close() error { return p.db.Close() }

func (p *PostgresDB) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, pgSchema)
	return err
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS stores (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sections (
	id BIGSERIAL PRIMARY KEY,
	store_id BIGINT NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	ord BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS items (
	id BIGSERIAL PRIMARY KEY,
	store_id BIGINT REFERENCES stores(id) ON DELETE CASCADE,
	section_id BIGINT REFERENCES sections(id) ON DELETE SET NULL,
	name TEXT NOT NULL,
	checked BOOLEAN NOT NULL DEFAULT FALSE,
	ord BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (section_id IS NULL OR store_id IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS organize_jobs (
	id BIGSERIAL PRIMARY KEY,
	store_id BIGINT NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'queued',
	attempt_count INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	last_error TEXT NOT NULL DEFAULT '',
	next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sections_store_ord ON sections(store_id, ord);
CREATE INDEX IF NOT EXISTS idx_items_scope_ord ON items(store_id, section_id, checked, ord);
CREATE INDEX IF NOT EXISTS idx_items_section ON items(section_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_organize_jobs_claim ON organize_jobs(status, next_attempt_at, id);
CREATE INDEX IF NOT EXISTS idx_organize_jobs_store ON organize_jobs(store_id, created_at DESC);
`

func (p *PostgresDB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Organize jobs ---

func (p *PostgresDB) EnqueueOrganizeJob(ctx context.Context, job *models.OrganizeJob) error {
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
	loaded, err := scanOrganizeJob(p.db.QueryRowContext(ctx,
		`INSERT INTO organize_jobs (store_id, status, attempt_count, max_attempts, last_error, next_attempt_at)
		 VALUES ($1, $2, 0, $3, '', $4)
		 RETURNING `+organizeJobColumns,
		job.StoreID, models.OrganizeJobQueued, maxAttempts, nextAttemptAt.UTC()))
	if err != nil {
		return err
	}
	*job = *loaded
	return nil
}

func (p *PostgresDB) ClaimOrganizeJob(ctx context.Context) (*models.OrganizeJob, error) {
	row := p.db.QueryRowContext(ctx,
		`UPDATE organize_jobs
		 SET status = $1,
			 attempt_count = attempt_count + 1,
			 started_at = NOW(),
			 completed_at = NULL,
			 updated_at = NOW()
		 WHERE id = (
			 SELECT id
			 FROM organize_jobs
			 WHERE status = $2
			   AND next_attempt_at <= NOW()
			 ORDER BY next_attempt_at ASC, id ASC
			 LIMIT 1
			 FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+organizeJobColumns,
		models.OrganizeJobInProgress, models.OrganizeJobQueued,
	)
	job, err := scanOrganizeJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func (p *PostgresDB) CompleteOrganizeJob(ctx context.Context, jobID int64, status models.OrganizeJobStatus, errMsg string) error {
	trimmedErr, err := terminalJobError(status, errMsg)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE organize_jobs
		 SET status = $1,
			 last_error = $2,
			 completed_at = NOW(),
			 updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		status, trimmedErr, jobID, models.OrganizeJobInProgress,
	)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

func (p *PostgresDB) RequeueOrganizeJob(ctx context.Context, jobID int64, errMsg string, nextAttemptAt time.Time) error {
	trimmedErr := strings.TrimSpace(errMsg)
	if trimmedErr == "" {
		trimmedErr = "job failed"
	}
	if nextAttemptAt.IsZero() {
		nextAttemptAt = time.Now().UTC()
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE organize_jobs
		 SET status = CASE
				 WHEN attempt_count >= max_attempts THEN $1
				 ELSE $2
			 END,
			 last_error = $3,
			 next_attempt_at = CASE
				 WHEN attempt_count >= max_attempts THEN next_attempt_at
				 ELSE $4
			 END,
			 started_at = NULL,
			 completed_at = CASE
				 WHEN attempt_count >= max_attempts THEN NOW()
				 ELSE NULL
			 END,
			 updated_at = NOW()
		 WHERE id = $5 AND status = $6`,
		models.OrganizeJobFailed, models.OrganizeJobQueued, trimmedErr, nextAttemptAt.UTC(), jobID, models.OrganizeJobInProgress,
	)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

func (p *PostgresDB) GetOrganizeJob(ctx context.Context, id int64) (*models.OrganizeJob, error) {
	return scanOrganizeJob(p.db.QueryRowContext(ctx,
		`SELECT `+organizeJobColumns+` FROM organize_jobs WHERE id = $1`, id))
}
