package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shoplist/shoplist/internal/database"
	"github.com/shoplist/shoplist/internal/models"
)

const (
	defaultRetryDelay = 5 * time.Second
	defaultMaxRetries = 3
)

// ErrPermanent marks a processing failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")

// Queue persists organize jobs and status transitions in the database.
type Queue struct {
	db          database.DB
	retryDelay  time.Duration
	maxAttempts int
}

type QueueOptions struct {
	RetryDelay  time.Duration
	MaxAttempts int
}

func NewQueue(db database.DB, opts QueueOptions) *Queue {
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxRetries
	}
	return &Queue{
		db:          db,
		retryDelay:  retryDelay,
		maxAttempts: maxAttempts,
	}
}

func (q *Queue) EnqueueOrganize(ctx context.Context, storeID int64) (*models.OrganizeJob, error) {
	if storeID <= 0 {
		return nil, fmt.Errorf("store id is required")
	}
	job := &models.OrganizeJob{
		StoreID:       storeID,
		Status:        models.OrganizeJobQueued,
		MaxAttempts:   q.maxAttempts,
		NextAttemptAt: time.Now().UTC(),
	}
	if err := q.db.EnqueueOrganizeJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (q *Queue) Claim(ctx context.Context) (*models.OrganizeJob, error) {
	return q.db.ClaimOrganizeJob(ctx)
}

func (q *Queue) Complete(ctx context.Context, jobID int64) error {
	return q.db.CompleteOrganizeJob(ctx, jobID, models.OrganizeJobCompleted, "")
}

func (q *Queue) Fail(ctx context.Context, jobID int64, runErr error) error {
	return q.db.CompleteOrganizeJob(ctx, jobID, models.OrganizeJobFailed, failureMessage(runErr))
}

func (q *Queue) RetryOrFail(ctx context.Context, job *models.OrganizeJob, runErr error) error {
	if job == nil {
		return fmt.Errorf("organize job is nil")
	}
	message := failureMessage(runErr)
	if errors.Is(runErr, ErrPermanent) || (job.MaxAttempts > 0 && job.AttemptCount >= job.MaxAttempts) {
		return q.Fail(ctx, job.ID, runErr)
	}
	nextAttempt := time.Now().UTC().Add(q.retryDelay)
	return q.db.RequeueOrganizeJob(ctx, job.ID, message, nextAttempt)
}

// Status returns nil without error when the job does not exist.
func (q *Queue) Status(ctx context.Context, jobID int64) (*models.OrganizeJob, error) {
	job, err := q.db.GetOrganizeJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func failureMessage(err error) string {
	if err == nil {
		return "job failed"
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "job failed"
	}
	return msg
}
