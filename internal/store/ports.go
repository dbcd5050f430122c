package store

import (
	"context"

	"soji/internal/core"
)

// Ports for record and settings persistence.
type (
	// RecordStore is the persistence port for work and expense records.
	RecordStore interface {
		// ListByMonth returns the records of one YYYY-MM bucket, oldest
		// date first. userID narrows the list to one owner; empty means
		// all owners. A month with no records yields an empty slice.
		ListByMonth(ctx context.Context, month, userID string) ([]core.Record, error)

		// FindByID returns core.ErrNotFound when the id is absent.
		FindByID(ctx context.Context, id string) (core.Record, error)

		// Create assigns the record's ID, Month and CreatedAt and stores
		// it, returning the stored form.
		Create(ctx context.Context, r core.Record) (core.Record, error)

		// Update overwrites the mutable fields of an existing record,
		// recomputes Month from the new date and refreshes UpdatedAt.
		// ID and CreatedAt never change. Absent id → core.ErrNotFound.
		Update(ctx context.Context, r core.Record) (core.Record, error)

		// Delete removes the record permanently. Absent id →
		// core.ErrNotFound.
		Delete(ctx context.Context, id string) error
	}

	// SettingsStore exposes the loose key/value settings rows.
	SettingsStore interface {
		All(ctx context.Context) (map[string]string, error)
	}
)
