package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/shoplist/shoplist/internal/database"
	"github.com/shoplist/shoplist/internal/models"
	"github.com/shoplist/shoplist/internal/ordering"
)

type ItemService struct {
	db database.DB
}

func NewItemService(db database.DB) *ItemService {
	return &ItemService{db: db}
}

// Create appends a new unchecked item to the scope named by storeID/sectionID.
func (s *ItemService) Create(ctx context.Context, storeID, sectionID *int64, name string) (it *models.Item, err error) {
	ctx, span := startSpan(ctx, "item.create")
	defer func() { endSpan(span, err) }()

	name, err = normalizeName(name)
	if err != nil {
		return nil, err
	}
	scope, err := ResolveScope(ctx, s.db, storeID, sectionID)
	if err != nil {
		return nil, err
	}
	it = &models.Item{StoreID: scope.StoreID, SectionID: scope.SectionID, Name: name}
	if err = s.db.CreateItem(ctx, it); err != nil {
		return nil, translate(err, "store or section")
	}
	return it, nil
}

// List assembles every unchecked item into the nested store/section view.
func (s *ItemService) List(ctx context.Context) (list *models.ItemList, err error) {
	ctx, span := startSpan(ctx, "item.list")
	defer func() { endSpan(span, err) }()

	var (
		items    []models.Item
		stores   []models.Store
		sections []models.Section
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.db.ListActiveItems(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stores, err = s.db.ListStores(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sections, err = s.db.ListAllSections(gctx)
		return err
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return AssembleItemList(stores, sections, items), nil
}

// AssembleItemList buckets items into the global-unassigned list, each
// store's unassigned list, or their section, then applies the sort laws.
// Checked items are left out. Rows that reference a store missing from
// stores are skipped; an item whose section is missing falls back to its
// store's unassigned list.
func AssembleItemList(stores []models.Store, sections []models.Section, items []models.Item) *models.ItemList {
	list := &models.ItemList{
		Unassigned: []models.Item{},
		Stores:     make([]models.ItemListStore, 0, len(stores)),
	}
	storeIdx := make(map[int64]int, len(stores))
	for _, st := range stores {
		storeIdx[st.ID] = len(list.Stores)
		list.Stores = append(list.Stores, models.ItemListStore{
			Store:      st,
			Unassigned: []models.Item{},
			Sections:   []models.ItemListSection{},
		})
	}

	type sectionLoc struct{ store, idx int }
	sectionIdx := make(map[int64]sectionLoc, len(sections))
	for _, sec := range sections {
		si, ok := storeIdx[sec.StoreID]
		if !ok {
			continue
		}
		sectionIdx[sec.ID] = sectionLoc{store: si, idx: len(list.Stores[si].Sections)}
		list.Stores[si].Sections = append(list.Stores[si].Sections, models.ItemListSection{
			Section: sec,
			Items:   []models.Item{},
		})
	}

	for _, it := range items {
		if it.Checked {
			continue
		}
		if it.SectionID != nil {
			if loc, ok := sectionIdx[*it.SectionID]; ok {
				sec := &list.Stores[loc.store].Sections[loc.idx]
				sec.Items = append(sec.Items, it)
				continue
			}
		}
		if it.StoreID == nil {
			list.Unassigned = append(list.Unassigned, it)
			continue
		}
		if si, ok := storeIdx[*it.StoreID]; ok {
			list.Stores[si].Unassigned = append(list.Stores[si].Unassigned, it)
		}
	}

	ordering.SortItems(list.Unassigned)
	ordering.SortListStores(list.Stores)
	for i := range list.Stores {
		st := &list.Stores[i]
		ordering.SortItems(st.Unassigned)
		ordering.SortListSections(st.Sections)
		for j := range st.Sections {
			ordering.SortItems(st.Sections[j].Items)
		}
	}
	return list
}

// Move relocates an item to the scope named by storeID/sectionID at index
// among that scope's active items. Out-of-range indices are clamped.
func (s *ItemService) Move(ctx context.Context, id int64, storeID, sectionID *int64, index int) (it *models.Item, err error) {
	ctx, span := startSpan(ctx, "item.move", attribute.Int64("item.id", id), attribute.Int("index", index))
	defer func() { endSpan(span, err) }()

	current, err := s.db.GetItem(ctx, id)
	if err != nil {
		return nil, translate(err, "item")
	}
	scope, err := ResolveScope(ctx, s.db, storeID, sectionID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("item.same_scope", scope.Contains(current)))
	it, err = s.db.MoveItem(ctx, id, scope, index)
	if err != nil {
		return nil, translate(err, "item")
	}
	return it, nil
}

func (s *ItemService) Rename(ctx context.Context, id int64, name string) (*models.Item, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	it, err := s.db.RenameItem(ctx, id, name)
	if err != nil {
		return nil, translate(err, "item")
	}
	return it, nil
}

func (s *ItemService) SetChecked(ctx context.Context, id int64, checked bool) (*models.Item, error) {
	it, err := s.db.SetItemChecked(ctx, id, checked)
	if err != nil {
		return nil, translate(err, "item")
	}
	return it, nil
}

func (s *ItemService) Delete(ctx context.Context, id int64) error {
	return translate(s.db.DeleteItem(ctx, id), "item")
}
