package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shoplist/shoplist/internal/classify"
	"github.com/shoplist/shoplist/internal/models"
	"github.com/shoplist/shoplist/internal/service"
)

type organizer interface {
	Organize(ctx context.Context, storeID int64) (service.OrganizeResult, error)
}

// OrganizeProcessor runs the bulk reorganizer for a claimed job. A store
// that disappeared or a classifier that is not configured fails the job
// without retries.
func OrganizeProcessor(org organizer, logger *slog.Logger) JobProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, job *models.OrganizeJob) error {
		res, err := org.Organize(ctx, job.StoreID)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) || errors.Is(err, classify.ErrNotConfigured) {
				return fmt.Errorf("%w: %w", ErrPermanent, err)
			}
			return err
		}
		logger.Info("organize job finished", "job_id", job.ID, "store_id", job.StoreID,
			"proposed", res.Proposed, "applied", res.Applied, "dropped", res.Dropped)
		return nil
	}
}
