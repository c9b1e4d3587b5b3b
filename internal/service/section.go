package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/shoplist/shoplist/internal/database"
	"github.com/shoplist/shoplist/internal/models"
	"github.com/shoplist/shoplist/internal/ordering"
)

type SectionService struct {
	db database.DB
}

func NewSectionService(db database.DB) *SectionService {
	return &SectionService{db: db}
}

// Create appends a section to the end of its store's section order.
func (s *SectionService) Create(ctx context.Context, storeID int64, name string) (*models.Section, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	sec := &models.Section{StoreID: storeID, Name: name}
	if err := s.db.CreateSection(ctx, sec); err != nil {
		return nil, translate(err, "store")
	}
	return sec, nil
}

func (s *SectionService) List(ctx context.Context, storeID int64) ([]models.Section, error) {
	if _, err := s.db.GetStore(ctx, storeID); err != nil {
		return nil, translate(err, "store")
	}
	sections, err := s.db.ListSections(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if sections == nil {
		sections = []models.Section{}
	}
	ordering.SortSections(sections)
	return sections, nil
}

func (s *SectionService) Update(ctx context.Context, id int64, name string) (*models.Section, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	sec := &models.Section{ID: id, Name: name}
	if err := s.db.UpdateSection(ctx, sec); err != nil {
		return nil, translate(err, "section")
	}
	return sec, nil
}

// Delete removes a section; its items fall back to the store's unassigned list.
func (s *SectionService) Delete(ctx context.Context, id int64) error {
	return translate(s.db.DeleteSection(ctx, id), "section")
}

func (s *SectionService) Move(ctx context.Context, id int64, index int) (sec *models.Section, err error) {
	ctx, span := startSpan(ctx, "section.move", attribute.Int64("section.id", id), attribute.Int("index", index))
	defer func() { endSpan(span, err) }()

	sec, err = s.db.MoveSection(ctx, id, index)
	if err != nil {
		return nil, translate(err, "section")
	}
	return sec, nil
}

// Reorder sets the store's section order to exactly sectionIDs.
func (s *SectionService) Reorder(ctx context.Context, storeID int64, sectionIDs []int64) ([]models.Section, error) {
	if err := s.db.ReorderSections(ctx, storeID, sectionIDs); err != nil {
		return nil, translate(err, "store")
	}
	return s.List(ctx, storeID)
}
