// Package session keeps the server-side registry of live login sessions.
// A signed token is only honored while its session is present here.
package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shoplist/shoplist/internal/models"
)

var ErrNotFound = errors.New("session not found")

type Store interface {
	Save(ctx context.Context, sess *models.Session) error
	// Lookup returns ErrNotFound for unknown, revoked or expired sessions.
	Lookup(ctx context.Context, id string) (*models.Session, error)
	Revoke(ctx context.Context, id string) error
}

type sessionDB interface {
	CreateSession(ctx context.Context, sess *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// DBStore keeps sessions in the application database.
type DBStore struct {
	db  sessionDB
	now func() time.Time
}

func NewDBStore(db sessionDB) *DBStore {
	return &DBStore{db: db, now: time.Now}
}

func (s *DBStore) Save(ctx context.Context, sess *models.Session) error {
	return s.db.CreateSession(ctx, sess)
}

func (s *DBStore) Lookup(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.db.GetSession(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !sess.ExpiresAt.After(s.now()) {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *DBStore) Revoke(ctx context.Context, id string) error {
	return s.db.DeleteSession(ctx, id)
}

// Sweep deletes expired rows and reports how many were removed.
func (s *DBStore) Sweep(ctx context.Context) (int64, error) {
	return s.db.DeleteExpiredSessions(ctx, s.now())
}
