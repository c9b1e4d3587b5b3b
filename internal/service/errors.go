package service

import (
	"database/sql"
	"errors"

	"github.com/shoplist/shoplist/internal/database"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
)

// Error carries a client-safe message for one of the sentinel kinds.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func notFound(what string) error {
	return &Error{Kind: ErrNotFound, Message: what + " not found"}
}

func invalid(msg string) error {
	return &Error{Kind: ErrInvalid, Message: msg}
}

func conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

var errSectionStoreMismatch = conflict("section doesn't belong to the given store")

// translate maps storage errors onto the service taxonomy. Anything it does
// not recognize is returned unchanged and treated as internal by callers.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return notFound(what)
	case errors.Is(err, database.ErrScopeMismatch):
		return errSectionStoreMismatch
	case errors.Is(err, database.ErrSectionSetMismatch):
		return invalid("sections must list every section of the store exactly once")
	default:
		return err
	}
}
