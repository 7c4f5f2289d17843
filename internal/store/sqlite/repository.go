package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"abonnements/internal/core"
	"abonnements/internal/store"

	_ "modernc.org/sqlite"
)

// Ensure interface conformance
var _ store.Gateway = (*Repository)(nil)

// Repository stores ledger rows in a local SQLite file. Positions are the
// insertion order of the rows still present.
type Repository struct {
	db      *sql.DB
	queries *Queries
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %w", core.ErrStoreUnavailable, err)
	}
	// One writer at a time keeps find-then-delete on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", core.ErrStoreUnavailable, err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, queries: New(db)}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrStoreUnavailable, op, err)
}

// ListRows implements store.RowLister
func (r *Repository) ListRows(ctx context.Context) ([]core.Row, error) {
	items, err := r.queries.ListSubscriptions(ctx)
	if err != nil {
		return nil, unavailable("list subscriptions", err)
	}
	rows := make([]core.Row, 0, len(items))
	for i, it := range items {
		rows = append(rows, core.Row{
			Index:   i + 1,
			Name:    it.Name,
			Price:   it.Price,
			Period:  it.Period,
			NextDue: it.NextDue,
		})
	}
	slog.DebugContext(ctx, "Read subscriptions from SQLite", "rows", len(rows))
	return rows, nil
}

// AppendRow implements store.RowAppender
func (r *Repository) AppendRow(ctx context.Context, row core.Row) (string, error) {
	id, err := r.queries.CreateSubscription(ctx, CreateSubscriptionParams{
		Name:    row.Name,
		Price:   row.Price,
		Period:  row.Period,
		NextDue: row.NextDue,
	})
	if err != nil {
		return "", unavailable("create subscription", err)
	}
	slog.InfoContext(ctx, "Subscription saved to SQLite", "id", id, "name", row.Name)
	return strconv.FormatInt(id, 10), nil
}

// FindAndDelete implements store.RowDeleter
func (r *Repository) FindAndDelete(ctx context.Context, name string) error {
	id, err := r.queries.FindSubscriptionByName(ctx, core.NormalizeName(name))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %q", core.ErrRecordNotFound, name)
	}
	if err != nil {
		return unavailable("find subscription", err)
	}
	return r.delete(ctx, id)
}

// DeleteAt implements store.RowDeleter
func (r *Repository) DeleteAt(ctx context.Context, index int) error {
	if index < 1 {
		return fmt.Errorf("%w: row %d", core.ErrRecordNotFound, index)
	}
	id, err := r.queries.FindSubscriptionAt(ctx, int64(index-1))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: row %d", core.ErrRecordNotFound, index)
	}
	if err != nil {
		return unavailable("find subscription", err)
	}
	return r.delete(ctx, id)
}

func (r *Repository) delete(ctx context.Context, id int64) error {
	if err := r.queries.DeleteSubscription(ctx, id); err != nil {
		return unavailable("delete subscription", err)
	}
	slog.InfoContext(ctx, "Subscription deleted from SQLite", "id", id)
	return nil
}
