// Package rowstore provides durable CRUD over the contact table. Two backends
// exist: a flat CSV file and a Google Sheets spreadsheet. Callers see one
// contract; the backends differ only in their atomicity mechanics.
package rowstore

import (
	"context"
	"errors"

	"creator-outreach/internal/models"
)

// ErrRowNotFound means the caller supplied a stale or invalid row identifier.
// It is a caller error and must not be retried blindly.
var ErrRowNotFound = errors.New("row not found")

// ErrStorageUnavailable wraps transient backend or network failures. It
// propagates to the job runner, which applies the retry policy.
var ErrStorageUnavailable = errors.New("storage unavailable")

// RowStore is the capability interface over the contact table.
//
// Update merges the given fields into the identified row, creating any
// missing columns first. It is safe to call concurrently for different row
// identifiers; concurrent updates to the same identifier race (last write
// wins) and callers must keep to the single-attempt-per-slot discipline.
type RowStore interface {
	// List returns all non-empty rows in storage order, identifiers 1..N.
	List(ctx context.Context) ([]models.ContactRow, error)
	// Get returns the row with the given identifier or ErrRowNotFound.
	Get(ctx context.Context, id int) (models.ContactRow, error)
	// Update merges fields into the identified row.
	Update(ctx context.Context, id int, fields map[string]string) error
	// AddColumn creates a column if absent. Idempotent: a duplicate call is a
	// no-op apart from a logged warning.
	AddColumn(ctx context.Context, name string) error
	// Close releases cached state and connections. Safe to call repeatedly.
	Close() error
}
