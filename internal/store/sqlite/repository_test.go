package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"abonnements/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "nested", "abonnements.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_AppendAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	draft := core.Draft{Name: "Netflix", Price: 9.99, Period: core.Monthly, NextDue: core.NewDate(2024, 6, 5)}
	ref, err := repo.AppendRow(ctx, draft.ToRow())
	if err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if ref != "1" {
		t.Errorf("ref = %q, want 1", ref)
	}

	rows, err := repo.ListRows(ctx)
	if err != nil {
		t.Fatalf("ListRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	sub, err := core.FromRow(rows[0])
	if err != nil {
		t.Fatalf("FromRow: %v", err)
	}
	if d := sub.Price - 9.99; d > 1e-9 || d < -1e-9 {
		t.Errorf("price = %v, want 9.99", sub.Price)
	}
	if sub.Index != 1 || sub.Period != core.Monthly || sub.NextDue != core.NewDate(2024, 6, 5) {
		t.Errorf("unexpected subscription: %+v", sub)
	}
}

func TestRepository_Delete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "A", "C"} {
		if _, err := repo.AppendRow(ctx, core.Row{Name: name, Price: "1", Period: "Monthly", NextDue: "2024-01-01"}); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}

	if err := repo.FindAndDelete(ctx, " A "); err != nil {
		t.Fatalf("FindAndDelete: %v", err)
	}
	if err := repo.DeleteAt(ctx, 2); err != nil {
		t.Fatalf("DeleteAt: %v", err)
	}

	rows, err := repo.ListRows(ctx)
	if err != nil {
		t.Fatalf("ListRows: %v", err)
	}
	got := make([]string, 0, len(rows))
	for _, r := range rows {
		got = append(got, r.Name)
	}
	if len(got) != 2 || got[0] != "B" || got[1] != "C" {
		t.Errorf("remaining = %v, want [B C]", got)
	}
	if rows[1].Index != 2 {
		t.Errorf("positions not contiguous: %+v", rows)
	}
}

func TestRepository_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.FindAndDelete(ctx, "Disney"); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("FindAndDelete: expected ErrRecordNotFound, got %v", err)
	}
	for _, idx := range []int{0, 1, -3} {
		if err := repo.DeleteAt(ctx, idx); !errors.Is(err, core.ErrRecordNotFound) {
			t.Errorf("DeleteAt(%d): expected ErrRecordNotFound, got %v", idx, err)
		}
	}
}

func TestRepository_ClosedIsUnavailable(t *testing.T) {
	repo := newTestRepo(t)
	repo.Close()

	if _, err := repo.ListRows(context.Background()); !errors.Is(err, core.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}
