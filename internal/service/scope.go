package service

import (
	"context"

	"github.com/shoplist/shoplist/internal/database"
	"github.com/shoplist/shoplist/internal/models"
)

// ResolveScope validates an optional (store, section) reference pair and
// returns the normalized scope. A section given alone resolves its owning
// store. It has no side effects.
func ResolveScope(ctx context.Context, db database.DB, storeID, sectionID *int64) (models.Scope, error) {
	if storeID != nil {
		if _, err := db.GetStore(ctx, *storeID); err != nil {
			return models.Scope{}, translate(err, "store")
		}
	}
	if sectionID == nil {
		if storeID == nil {
			return models.Scope{}, nil
		}
		id := *storeID
		return models.Scope{StoreID: &id}, nil
	}

	sec, err := db.GetSection(ctx, *sectionID)
	if err != nil {
		return models.Scope{}, translate(err, "section")
	}
	if storeID != nil && *storeID != sec.StoreID {
		return models.Scope{}, errSectionStoreMismatch
	}
	return models.Scope{StoreID: &sec.StoreID, SectionID: &sec.ID}, nil
}
