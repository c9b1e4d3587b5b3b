package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/shoplist/shoplist/internal/models"
)

// DB defines the data access interface. Implemented by SQLite and PostgreSQL backends.
//
// Lookups of missing rows return sql.ErrNoRows. Every mutation that touches
// ord runs in a single transaction together with its allocation reads.
type DB interface {
	Close() error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	DBStats() sql.DBStats

	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// Sessions
	CreateSession(ctx context.Context, sess *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Stores
	CreateStore(ctx context.Context, store *models.Store) error
	GetStore(ctx context.Context, id int64) (*models.Store, error)
	ListStores(ctx context.Context) ([]models.Store, error)
	UpdateStore(ctx context.Context, store *models.Store) error
	DeleteStore(ctx context.Context, id int64) error

	// Sections
	CreateSection(ctx context.Context, section *models.Section) error
	GetSection(ctx context.Context, id int64) (*models.Section, error)
	ListSections(ctx context.Context, storeID int64) ([]models.Section, error)
	ListAllSections(ctx context.Context) ([]models.Section, error)
	UpdateSection(ctx context.Context, section *models.Section) error
	DeleteSection(ctx context.Context, id int64) error
	MoveSection(ctx context.Context, id int64, index int) (*models.Section, error)
	ReorderSections(ctx context.Context, storeID int64, sectionIDs []int64) error

	// Items
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	ListActiveItems(ctx context.Context) ([]models.Item, error)
	ListScopeItems(ctx context.Context, scope models.Scope) ([]models.Item, error)
	RenameItem(ctx context.Context, id int64, name string) (*models.Item, error)
	SetItemChecked(ctx context.Context, id int64, checked bool) (*models.Item, error)
	DeleteItem(ctx context.Context, id int64) error
	MoveItem(ctx context.Context, id int64, scope models.Scope, index int) (*models.Item, error)
	AssignItemsToSections(ctx context.Context, storeID int64, groups []models.SectionAssignment) (int, error)

	// Organize jobs
	EnqueueOrganizeJob(ctx context.Context, job *models.OrganizeJob) error
	ClaimOrganizeJob(ctx context.Context) (*models.OrganizeJob, error)
	CompleteOrganizeJob(ctx context.Context, jobID int64, status models.OrganizeJobStatus, errMsg string) error
	RequeueOrganizeJob(ctx context.Context, jobID int64, errMsg string, nextAttemptAt time.Time) error
	GetOrganizeJob(ctx context.Context, id int64) (*models.OrganizeJob, error)
	OrganizeQueueStats(ctx context.Context) (OrganizeQueueStats, error)
}
