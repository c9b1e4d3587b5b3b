package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/shoplist/shoplist/internal/classify"
	"github.com/shoplist/shoplist/internal/database"
	"github.com/shoplist/shoplist/internal/models"
)

type OrganizeOptions struct {
	// Timeout bounds a single classifier call. Zero means no extra bound.
	Timeout    time.Duration
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// OrganizeService files a store's unassigned items into its sections using
// a Classifier, committing all accepted proposals in one transaction.
type OrganizeService struct {
	db         database.DB
	classifier classify.Classifier
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *organizeMetrics
}

type OrganizeResult struct {
	Proposed int `json:"proposed"`
	Applied  int `json:"applied"`
	Dropped  int `json:"dropped"`
}

func NewOrganizeService(db database.DB, classifier classify.Classifier, opts OrganizeOptions) *OrganizeService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OrganizeService{
		db:         db,
		classifier: classifier,
		timeout:    opts.Timeout,
		logger:     logger,
		metrics:    newOrganizeMetrics(opts.Registerer),
	}
}

// Organize runs the classifier over storeID's unassigned items and sections.
// The classifier call happens before any transaction is opened. Invalid
// proposals are logged and dropped; a store with no unassigned items or no
// sections is a no-op.
func (s *OrganizeService) Organize(ctx context.Context, storeID int64) (result OrganizeResult, err error) {
	ctx, span := startSpan(ctx, "organize", attribute.Int64("store.id", storeID))
	defer func() {
		span.SetAttributes(
			attribute.Int("organize.proposed", result.Proposed),
			attribute.Int("organize.applied", result.Applied),
			attribute.Int("organize.dropped", result.Dropped),
		)
		endSpan(span, err)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.runs.WithLabelValues(outcome).Inc()
	}()

	if _, err = s.db.GetStore(ctx, storeID); err != nil {
		return result, translate(err, "store")
	}

	var (
		items    []models.Item
		sections []models.Section
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.db.ListScopeItems(gctx, models.Scope{StoreID: &storeID})
		return err
	})
	g.Go(func() error {
		var err error
		sections, err = s.db.ListSections(gctx, storeID)
		return err
	})
	if err = g.Wait(); err != nil {
		return result, err
	}
	if len(items) == 0 || len(sections) == 0 {
		return result, nil
	}
	if s.classifier == nil {
		return result, classify.ErrNotConfigured
	}

	itemCandidates := make([]classify.Candidate, 0, len(items))
	for _, it := range items {
		itemCandidates = append(itemCandidates, classify.Candidate{ID: it.ID, Name: it.Name})
	}
	sectionCandidates := make([]classify.Candidate, 0, len(sections))
	for _, sec := range sections {
		sectionCandidates = append(sectionCandidates, classify.Candidate{ID: sec.ID, Name: sec.Name})
	}

	proposals, err := s.classify(ctx, itemCandidates, sectionCandidates)
	if err != nil {
		return result, fmt.Errorf("classify store %d: %w", storeID, err)
	}
	result.Proposed = len(proposals)
	s.metrics.proposed.Add(float64(len(proposals)))

	groups, dropped := s.groupProposals(storeID, proposals, itemCandidates, sectionCandidates)
	result.Dropped = dropped
	if len(groups) == 0 {
		return result, nil
	}

	applied, err := s.db.AssignItemsToSections(ctx, storeID, groups)
	if err != nil {
		return result, fmt.Errorf("apply organize for store %d: %w", storeID, err)
	}
	result.Applied = applied
	s.metrics.applied.Add(float64(applied))

	// Items checked, moved or deleted while the classifier ran are skipped
	// by the commit and count as dropped.
	accepted := 0
	for _, grp := range groups {
		accepted += len(grp.ItemIDs)
	}
	if stale := accepted - applied; stale > 0 {
		result.Dropped += stale
		s.metrics.dropped.WithLabelValues("stale").Add(float64(stale))
		s.logger.Warn("classifier assignments went stale before commit", "store_id", storeID, "stale", stale)
	}
	s.logger.Info("store organized", "store_id", storeID, "proposed", result.Proposed, "applied", applied, "dropped", result.Dropped)
	return result, nil
}

func (s *OrganizeService) classify(ctx context.Context, items, sections []classify.Candidate) ([]classify.Assignment, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	ctx, span := startSpan(ctx, "organize.classify",
		attribute.Int("classify.items", len(items)),
		attribute.Int("classify.sections", len(sections)),
	)
	start := time.Now()
	out, err := s.classifier.Classify(ctx, items, sections)
	s.metrics.classifyDuration.Observe(time.Since(start).Seconds())
	endSpan(span, err)
	return out, err
}

// groupProposals keeps proposals whose item and section are both in the
// candidate sets and groups them by section in first-seen order. Item order
// within a group follows the classifier's order.
func (s *OrganizeService) groupProposals(storeID int64, proposals []classify.Assignment, items, sections []classify.Candidate) ([]models.SectionAssignment, int) {
	knownItems := make(map[int64]struct{}, len(items))
	for _, c := range items {
		knownItems[c.ID] = struct{}{}
	}
	knownSections := make(map[int64]struct{}, len(sections))
	for _, c := range sections {
		knownSections[c.ID] = struct{}{}
	}

	var groups []models.SectionAssignment
	groupIdx := make(map[int64]int)
	dropped := 0
	for _, p := range proposals {
		reason := ""
		if _, ok := knownItems[p.ItemID]; !ok {
			reason = "unknown_item"
		} else if _, ok := knownSections[p.SectionID]; !ok {
			reason = "unknown_section"
		}
		if reason != "" {
			dropped++
			s.metrics.dropped.WithLabelValues(reason).Inc()
			s.logger.Warn("dropping classifier assignment",
				"store_id", storeID, "item_id", p.ItemID, "section_id", p.SectionID, "reason", reason)
			continue
		}
		i, ok := groupIdx[p.SectionID]
		if !ok {
			i = len(groups)
			groupIdx[p.SectionID] = i
			groups = append(groups, models.SectionAssignment{SectionID: p.SectionID})
		}
		groups[i].ItemIDs = append(groups[i].ItemIDs, p.ItemID)
	}
	return groups, dropped
}
