// Package store declares the ledger store gateway that every backend
// implements. The ledger logic depends only on these interfaces.
package store

import (
	"context"

	"abonnements/internal/core"
)

// Ports for outbound adapters.
type (
	// RowLister returns every data row in store order, header excluded.
	RowLister interface {
		ListRows(ctx context.Context) ([]core.Row, error)
	}

	// RowAppender adds a row at the end of the store and returns a backend
	// specific reference to it.
	RowAppender interface {
		AppendRow(ctx context.Context, r core.Row) (ref string, err error)
	}

	// RowDeleter removes rows. FindAndDelete removes the first row whose name
	// matches; both return core.ErrRecordNotFound when nothing matched and
	// leave the store unchanged in that case.
	RowDeleter interface {
		FindAndDelete(ctx context.Context, name string) error
		DeleteAt(ctx context.Context, index int) error
	}

	Gateway interface {
		RowLister
		RowAppender
		RowDeleter
	}
)

// MatchName reports whether a stored name matches a deletion key.
func MatchName(stored, key string) bool {
	return core.NormalizeName(stored) == core.NormalizeName(key)
}
