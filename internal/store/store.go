package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/bugs/internal/models"
)

var (
	// ErrNotFound is returned when no bug matches the requested ID.
	ErrNotFound = errors.New("bug not found")

	// ErrMalformedID is returned when an ID cannot be parsed as a ULID.
	ErrMalformedID = errors.New("malformed bug id")
)

// Store defines the persistence interface for bugs. Every call touches a
// single document.
type Store interface {
	// CreateBug assigns ID and timestamps and inserts the bug.
	CreateBug(ctx context.Context, bug *models.Bug) error
	// ListBugs returns all bugs, newest first.
	ListBugs(ctx context.Context) ([]*models.Bug, error)
	GetBug(ctx context.Context, id string) (*models.Bug, error)
	// ReplaceBug overwrites title, description and status of an existing bug
	// and refreshes UpdatedAt. CreatedAt is filled from the stored record.
	ReplaceBug(ctx context.Context, bug *models.Bug) error
	// DeleteBug removes the bug and returns it as it was stored.
	DeleteBug(ctx context.Context, id string) (*models.Bug, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// newID generates a new time-ordered ULID string.
func newID() string {
	return ulid.Make().String()
}

// checkID rejects IDs that could never have been issued by newID.
func checkID(id string) error {
	if _, err := ulid.ParseStrict(id); err != nil {
		return fmt.Errorf("%w %q: %v", ErrMalformedID, id, err)
	}
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
