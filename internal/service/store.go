package service

import (
	"context"
	"strings"

	"github.com/shoplist/shoplist/internal/database"
	"github.com/shoplist/shoplist/internal/models"
	"github.com/shoplist/shoplist/internal/ordering"
)

type StoreService struct {
	db database.DB
}

func NewStoreService(db database.DB) *StoreService {
	return &StoreService{db: db}
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name is required")
	}
	return name, nil
}

func (s *StoreService) Create(ctx context.Context, name string) (*models.Store, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	store := &models.Store{Name: name}
	if err := s.db.CreateStore(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

// List returns stores by name, most recently updated first among equal names.
func (s *StoreService) List(ctx context.Context) ([]models.Store, error) {
	stores, err := s.db.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	if stores == nil {
		stores = []models.Store{}
	}
	ordering.SortStores(stores)
	return stores, nil
}

func (s *StoreService) Update(ctx context.Context, id int64, name string) (*models.Store, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	store := &models.Store{ID: id, Name: name}
	if err := s.db.UpdateStore(ctx, store); err != nil {
		return nil, translate(err, "store")
	}
	return store, nil
}

// Delete removes the store together with its sections and items.
func (s *StoreService) Delete(ctx context.Context, id int64) error {
	return translate(s.db.DeleteStore(ctx, id), "store")
}
