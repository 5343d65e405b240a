// Package repository contains the record store abstraction for processed files.
// Implementations live in subpackages (postgres, sqlite, memory).
package repository

import (
	"context"
	"errors"

	"xmlrelay/internal/model"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("processed file not found")

// ProcessedFileRepository is the record store. Each method is atomic on its own;
// implementations must be safe for concurrent use.
type ProcessedFileRepository interface {
	// Create inserts a record. The store assigns ID (monotonic, never reused)
	// and ProcessedDate (time of insert); values set by the caller are ignored.
	Create(ctx context.Context, file *model.ProcessedFile) (*model.ProcessedFile, error)

	// FindByID returns the record or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*model.ProcessedFile, error)

	// List returns all records ordered by id.
	List(ctx context.Context) ([]model.ProcessedFile, error)

	// Delete removes the record or returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id int64) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}
