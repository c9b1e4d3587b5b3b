package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shoplist/shoplist/internal/models"
	"github.com/shoplist/shoplist/internal/ordering"
)

var (
	// ErrScopeMismatch is returned when a section is addressed under a store that does not own it.
	ErrScopeMismatch = errors.New("section does not belong to store")
	// ErrSectionSetMismatch is returned when a reorder list is not exactly the store's sections.
	ErrSectionSetMismatch = errors.New("section list does not match store sections")
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// catalog implements the store/section/item operations shared by both
// backends. Queries are written with ? placeholders and rebound per dialect.
type catalog struct {
	db   *sql.DB
	bind func(string) string
	// inTx runs fn in one transaction, committing only when fn returns nil.
	inTx func(ctx context.Context, fn func(tx *sql.Tx) error) error
	// forUpdate is appended to parent-row lookups that serialize allocation.
	forUpdate string
	// globalLock serializes allocation in the global-unassigned scope. Empty means none.
	globalLock string
}

const (
	itemColumns    = `id, store_id, section_id, name, checked, ord, created_at, updated_at`
	sectionColumns = `id, store_id, name, ord, created_at, updated_at`
	storeColumns   = `id, name, created_at, updated_at`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var it models.Item
	var storeID, sectionID sql.NullInt64
	if err := row.Scan(&it.ID, &storeID, &sectionID, &it.Name, &it.Checked, &it.Ord, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	if storeID.Valid {
		v := storeID.Int64
		it.StoreID = &v
	}
	if sectionID.Valid {
		v := sectionID.Int64
		it.SectionID = &v
	}
	return &it, nil
}

func scanSection(row rowScanner) (*models.Section, error) {
	var s models.Section
	if err := row.Scan(&s.ID, &s.StoreID, &s.Name, &s.Ord, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanStore(row rowScanner) (*models.Store, error) {
	var s models.Store
	if err := row.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// scopeClause matches rows in the (store_id, section_id) scope, NULLs included.
func scopeClause(scope models.Scope) (string, []any) {
	var parts []string
	var args []any
	if scope.StoreID == nil {
		parts = append(parts, "store_id IS NULL")
	} else {
		parts = append(parts, "store_id = ?")
		args = append(args, *scope.StoreID)
	}
	if scope.SectionID == nil {
		parts = append(parts, "section_id IS NULL")
	} else {
		parts = append(parts, "section_id = ?")
		args = append(args, *scope.SectionID)
	}
	return strings.Join(parts, " AND "), args
}

func rowsAffectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (c *catalog) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *catalog) DBStats() sql.DBStats { return c.db.Stats() }

// --- Users ---

func (c *catalog) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	if err := c.db.QueryRowContext(ctx,
		c.bind(`INSERT INTO users (username, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id`),
		u.Username, u.PasswordHash, now, now).Scan(&u.ID); err != nil {
		return err
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

func (c *catalog) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(c.db.QueryRowContext(ctx,
		c.bind(`SELECT id, username, password_hash, created_at, updated_at FROM users WHERE id = ?`), id))
}

func (c *catalog) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(c.db.QueryRowContext(ctx,
		c.bind(`SELECT id, username, password_hash, created_at, updated_at FROM users WHERE username = ?`), username))
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// --- Sessions ---

func (c *catalog) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	_, err := c.db.ExecContext(ctx,
		c.bind(`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`),
		sess.ID, sess.UserID, sess.ExpiresAt.UTC(), sess.CreatedAt)
	return err
}

func (c *catalog) GetSession(ctx context.Context, id string) (*models.Session, error) {
	sess := &models.Session{}
	err := c.db.QueryRowContext(ctx,
		c.bind(`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?`), id).
		Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (c *catalog) DeleteSession(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, c.bind(`DELETE FROM sessions WHERE id = ?`), id)
	return err
}

func (c *catalog) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, c.bind(`DELETE FROM sessions WHERE expires_at <= ?`), now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Stores ---

func (c *catalog) CreateStore(ctx context.Context, s *models.Store) error {
	now := time.Now().UTC()
	if err := c.db.QueryRowContext(ctx,
		c.bind(`INSERT INTO stores (name, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`),
		s.Name, now, now).Scan(&s.ID); err != nil {
		return err
	}
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

func (c *catalog) GetStore(ctx context.Context, id int64) (*models.Store, error) {
	return scanStore(c.db.QueryRowContext(ctx, c.bind(`SELECT `+storeColumns+` FROM stores WHERE id = ?`), id))
}

func (c *catalog) ListStores(ctx context.Context) ([]models.Store, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+storeColumns+` FROM stores ORDER BY name ASC, updated_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stores []models.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		stores = append(stores, *s)
	}
	return stores, rows.Err()
}

func (c *catalog) UpdateStore(ctx context.Context, s *models.Store) error {
	now := time.Now().UTC()
	res, err := c.db.ExecContext(ctx, c.bind(`UPDATE stores SET name = ?, updated_at = ? WHERE id = ?`), s.Name, now, s.ID)
	if err != nil {
		return err
	}
	if err := rowsAffectedOrNotFound(res); err != nil {
		return err
	}
	loaded, err := c.GetStore(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *loaded
	return nil
}

// DeleteStore removes a store with its organize jobs, items and sections.
func (c *catalog) DeleteStore(ctx context.Context, id int64) error {
	return c.inTx(ctx, func(tx *sql.Tx) error {
		var locked int64
		if err := tx.QueryRowContext(ctx, c.bind(`SELECT id FROM stores WHERE id = ?`+c.forUpdate), id).Scan(&locked); err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM organize_jobs WHERE store_id = ?`,
			`DELETE FROM items WHERE store_id = ?`,
			`DELETE FROM sections WHERE store_id = ?`,
			`DELETE FROM stores WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, c.bind(stmt), id); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- Sections ---

func (c *catalog) lockStore(ctx context.Context, tx *sql.Tx, storeID int64) error {
	var locked int64
	return tx.QueryRowContext(ctx, c.bind(`SELECT id FROM stores WHERE id = ?`+c.forUpdate), storeID).Scan(&locked)
}

func (c *catalog) sectionIDs(ctx context.Context, q queryer, storeID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		c.bind(`SELECT id FROM sections WHERE store_id = ? ORDER BY ord ASC, updated_at DESC, id ASC`), storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (c *catalog) renumberSections(ctx context.Context, tx *sql.Tx, ids []int64) error {
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, c.bind(`UPDATE sections SET ord = ? WHERE id = ?`), ordering.Position(i), id); err != nil {
			return err
		}
	}
	return nil
}

func (c *catalog) CreateSection(ctx context.Context, s *models.Section) error {
	now := time.Now().UTC()
	return c.inTx(ctx, func(tx *sql.Tx) error {
		if err := c.lockStore(ctx, tx, s.StoreID); err != nil {
			return err
		}
		var maxOrd int64
		if err := tx.QueryRowContext(ctx,
			c.bind(`SELECT COALESCE(MAX(ord), 0) FROM sections WHERE store_id = ?`), s.StoreID).Scan(&maxOrd); err != nil {
			return err
		}
		s.Ord = ordering.Next(maxOrd)
		s.CreatedAt, s.UpdatedAt = now, now
		return tx.QueryRowContext(ctx,
			c.bind(`INSERT INTO sections (store_id, name, ord, created_at, updated_at) VALUES (?, ?, ?, ?, ?) RETURNING id`),
			s.StoreID, s.Name, s.Ord, now, now).Scan(&s.ID)
	})
}

func (c *catalog) GetSection(ctx context.Context, id int64) (*models.Section, error) {
	return scanSection(c.db.QueryRowContext(ctx, c.bind(`SELECT `+sectionColumns+` FROM sections WHERE id = ?`), id))
}

func (c *catalog) ListSections(ctx context.Context, storeID int64) ([]models.Section, error) {
	return c.querySections(ctx,
		c.bind(`SELECT `+sectionColumns+` FROM sections WHERE store_id = ? ORDER BY ord ASC, updated_at DESC, id ASC`), storeID)
}

func (c *catalog) ListAllSections(ctx context.Context) ([]models.Section, error) {
	return c.querySections(ctx, `SELECT `+sectionColumns+` FROM sections ORDER BY store_id ASC, ord ASC, updated_at DESC, id ASC`)
}

func (c *catalog) querySections(ctx context.Context, query string, args ...any) ([]models.Section, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sections []models.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, *s)
	}
	return sections, rows.Err()
}

func (c *catalog) UpdateSection(ctx context.Context, s *models.Section) error {
	now := time.Now().UTC()
	res, err := c.db.ExecContext(ctx, c.bind(`UPDATE sections SET name = ?, updated_at = ? WHERE id = ?`), s.Name, now, s.ID)
	if err != nil {
		return err
	}
	if err := rowsAffectedOrNotFound(res); err != nil {
		return err
	}
	loaded, err := c.GetSection(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *loaded
	return nil
}

// DeleteSection removes a section. Its active items are appended, in their
// current order, to the end of the owning store's unassigned scope; checked
// items keep their ord and simply lose the section reference.
func (c *catalog) DeleteSection(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	return c.inTx(ctx, func(tx *sql.Tx) error {
		var storeID int64
		if err := tx.QueryRowContext(ctx, c.bind(`SELECT store_id FROM sections WHERE id = ?`), id).Scan(&storeID); err != nil {
			return err
		}
		if err := c.lockStore(ctx, tx, storeID); err != nil {
			return err
		}
		storeScope := models.Scope{StoreID: &storeID}
		maxOrd, err := c.maxItemOrd(ctx, tx, storeScope)
		if err != nil {
			return err
		}
		sectionScope := models.Scope{StoreID: &storeID, SectionID: &id}
		ids, err := c.activeItemIDs(ctx, tx, sectionScope)
		if err != nil {
			return err
		}
		next := maxOrd
		for _, itemID := range ids {
			next = ordering.Next(next)
			if _, err := tx.ExecContext(ctx,
				c.bind(`UPDATE items SET section_id = NULL, ord = ?, updated_at = ? WHERE id = ?`),
				next, now, itemID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			c.bind(`UPDATE items SET section_id = NULL, updated_at = ? WHERE section_id = ?`), now, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, c.bind(`DELETE FROM sections WHERE id = ?`), id)
		return err
	})
}

// MoveSection places a section at index among its store's sections and
// renumbers them 1..n.
func (c *catalog) MoveSection(ctx context.Context, id int64, index int) (*models.Section, error) {
	var moved *models.Section
	now := time.Now().UTC()
	err := c.inTx(ctx, func(tx *sql.Tx) error {
		var storeID int64
		if err := tx.QueryRowContext(ctx, c.bind(`SELECT store_id FROM sections WHERE id = ?`), id).Scan(&storeID); err != nil {
			return err
		}
		if err := c.lockStore(ctx, tx, storeID); err != nil {
			return err
		}
		ids, err := c.sectionIDs(ctx, tx, storeID)
		if err != nil {
			return err
		}
		if err := c.renumberSections(ctx, tx, ordering.InsertAt(ids, id, index)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, c.bind(`UPDATE sections SET updated_at = ? WHERE id = ?`), now, id); err != nil {
			return err
		}
		moved, err = scanSection(tx.QueryRowContext(ctx, c.bind(`SELECT `+sectionColumns+` FROM sections WHERE id = ?`), id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func (c *catalog) ReorderSections(ctx context.Context, storeID int64, sectionIDs []int64) error {
	return c.inTx(ctx, func(tx *sql.Tx) error {
		if err := c.lockStore(ctx, tx, storeID); err != nil {
			return err
		}
		current, err := c.sectionIDs(ctx, tx, storeID)
		if err != nil {
			return err
		}
		if !ordering.SameMembers(current, sectionIDs) {
			return ErrSectionSetMismatch
		}
		return c.renumberSections(ctx, tx, sectionIDs)
	})
}

// --- Items ---

// lockScope verifies the scope's parent rows exist and, on backends that
// support it, locks them so concurrent allocations in the scope serialize.
func (c *catalog) lockScope(ctx context.Context, tx *sql.Tx, scope models.Scope) error {
	switch {
	case scope.SectionID != nil:
		var owner int64
		if err := tx.QueryRowContext(ctx,
			c.bind(`SELECT store_id FROM sections WHERE id = ?`+c.forUpdate), *scope.SectionID).Scan(&owner); err != nil {
			return err
		}
		if scope.StoreID == nil || *scope.StoreID != owner {
			return ErrScopeMismatch
		}
		return nil
	case scope.StoreID != nil:
		return c.lockStore(ctx, tx, *scope.StoreID)
	case c.globalLock != "":
		_, err := tx.ExecContext(ctx, c.globalLock)
		return err
	default:
		return nil
	}
}

func (c *catalog) maxItemOrd(ctx context.Context, q queryer, scope models.Scope) (int64, error) {
	where, args := scopeClause(scope)
	var maxOrd int64
	err := q.QueryRowContext(ctx,
		c.bind(`SELECT COALESCE(MAX(ord), 0) FROM items WHERE `+where+` AND checked = FALSE`), args...).Scan(&maxOrd)
	return maxOrd, err
}

func (c *catalog) activeItemIDs(ctx context.Context, q queryer, scope models.Scope) ([]int64, error) {
	where, args := scopeClause(scope)
	rows, err := q.QueryContext(ctx,
		c.bind(`SELECT id FROM items WHERE `+where+` AND checked = FALSE ORDER BY ord ASC, updated_at DESC, id ASC`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateItem appends an unchecked item to its scope. The ord read and the
// insert share one transaction.
func (c *catalog) CreateItem(ctx context.Context, it *models.Item) error {
	scope := models.Scope{StoreID: it.StoreID, SectionID: it.SectionID}
	now := time.Now().UTC()
	return c.inTx(ctx, func(tx *sql.Tx) error {
		if err := c.lockScope(ctx, tx, scope); err != nil {
			return err
		}
		maxOrd, err := c.maxItemOrd(ctx, tx, scope)
		if err != nil {
			return err
		}
		it.Ord = ordering.Next(maxOrd)
		it.Checked = false
		it.CreatedAt, it.UpdatedAt = now, now
		return tx.QueryRowContext(ctx,
			c.bind(`INSERT INTO items (store_id, section_id, name, checked, ord, created_at, updated_at)
			 VALUES (?, ?, ?, FALSE, ?, ?, ?) RETURNING id`),
			nullableID(it.StoreID), nullableID(it.SectionID), it.Name, it.Ord, now, now).Scan(&it.ID)
	})
}

func (c *catalog) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return c.getItem(ctx, c.db, id)
}

func (c *catalog) getItem(ctx context.Context, q queryer, id int64) (*models.Item, error) {
	return scanItem(q.QueryRowContext(ctx, c.bind(`SELECT `+itemColumns+` FROM items WHERE id = ?`), id))
}

func (c *catalog) ListActiveItems(ctx context.Context) ([]models.Item, error) {
	return c.queryItems(ctx, `SELECT `+itemColumns+` FROM items WHERE checked = FALSE ORDER BY ord ASC, updated_at DESC, id ASC`)
}

func (c *catalog) ListScopeItems(ctx context.Context, scope models.Scope) ([]models.Item, error) {
	where, args := scopeClause(scope)
	return c.queryItems(ctx,
		c.bind(`SELECT `+itemColumns+` FROM items WHERE `+where+` AND checked = FALSE ORDER BY ord ASC, updated_at DESC, id ASC`), args...)
}

func (c *catalog) queryItems(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (c *catalog) RenameItem(ctx context.Context, id int64, name string) (*models.Item, error) {
	res, err := c.db.ExecContext(ctx, c.bind(`UPDATE items SET name = ?, updated_at = ? WHERE id = ?`), name, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	if err := rowsAffectedOrNotFound(res); err != nil {
		return nil, err
	}
	return c.GetItem(ctx, id)
}

// SetItemChecked toggles completion without touching ord.
func (c *catalog) SetItemChecked(ctx context.Context, id int64, checked bool) (*models.Item, error) {
	res, err := c.db.ExecContext(ctx, c.bind(`UPDATE items SET checked = ?, updated_at = ? WHERE id = ?`), checked, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	if err := rowsAffectedOrNotFound(res); err != nil {
		return nil, err
	}
	return c.GetItem(ctx, id)
}

func (c *catalog) DeleteItem(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, c.bind(`DELETE FROM items WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

// MoveItem relocates an item into scope at index among the scope's active
// items and renumbers that scope 1..n. The source scope keeps its gap.
func (c *catalog) MoveItem(ctx context.Context, id int64, scope models.Scope, index int) (*models.Item, error) {
	var moved *models.Item
	now := time.Now().UTC()
	err := c.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := c.getItem(ctx, tx, id); err != nil {
			return err
		}
		if err := c.lockScope(ctx, tx, scope); err != nil {
			return err
		}
		siblings, err := c.activeItemIDs(ctx, tx, scope)
		if err != nil {
			return err
		}
		for i, itemID := range ordering.InsertAt(siblings, id, index) {
			ord := ordering.Position(i)
			if itemID == id {
				if _, err := tx.ExecContext(ctx,
					c.bind(`UPDATE items SET store_id = ?, section_id = ?, ord = ?, updated_at = ? WHERE id = ?`),
					nullableID(scope.StoreID), nullableID(scope.SectionID), ord, now, id); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.ExecContext(ctx,
				c.bind(`UPDATE items SET ord = ? WHERE id = ? AND ord <> ?`), ord, itemID, ord); err != nil {
				return err
			}
		}
		moved, err = c.getItem(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// AssignItemsToSections appends each group's items, in order, to the end of
// its section. Only items still unassigned and unchecked in storeID are moved;
// groups whose section is gone or owned by another store are skipped. All
// groups commit together. It returns the number of items moved.
func (c *catalog) AssignItemsToSections(ctx context.Context, storeID int64, groups []models.SectionAssignment) (int, error) {
	if len(groups) == 0 {
		return 0, nil
	}
	var applied int
	now := time.Now().UTC()
	err := c.inTx(ctx, func(tx *sql.Tx) error {
		applied = 0
		for _, g := range groups {
			var owner int64
			err := tx.QueryRowContext(ctx,
				c.bind(`SELECT store_id FROM sections WHERE id = ?`+c.forUpdate), g.SectionID).Scan(&owner)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			if owner != storeID {
				continue
			}
			sectionID := g.SectionID
			next, err := c.maxItemOrd(ctx, tx, models.Scope{StoreID: &storeID, SectionID: &sectionID})
			if err != nil {
				return err
			}
			for _, itemID := range g.ItemIDs {
				res, err := tx.ExecContext(ctx,
					c.bind(`UPDATE items SET section_id = ?, ord = ?, updated_at = ?
					 WHERE id = ? AND store_id = ? AND section_id IS NULL AND checked = FALSE`),
					sectionID, ordering.Next(next), now, itemID, storeID)
				if err != nil {
					return fmt.Errorf("assign item %d to section %d: %w", itemID, sectionID, err)
				}
				n, err := res.RowsAffected()
				if err != nil {
					return err
				}
				if n == 1 {
					next = ordering.Next(next)
					applied++
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}
