package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"abonnements/internal/core"
)

func TestMemoryStoreAppendListDelete(t *testing.T) {
	ctx := context.Background()
	s := New(core.Row{Name: "A", Price: "1", Period: "Monthly", NextDue: "2025-01-01"})

	ref, err := s.AppendRow(ctx, core.Row{Name: "B", Price: "2", Period: "Yearly", NextDue: "2025-02-01"})
	if err != nil || ref != "mem:2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	if _, err := s.AppendRow(ctx, core.Row{Name: "A", Price: "3"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.FindAndDelete(ctx, " A "); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows, _ := s.ListRows(ctx)
	if len(rows) != 2 || rows[0].Name != "B" || rows[1].Price != "3" {
		t.Fatalf("first match must be removed: %+v", rows)
	}
	if rows[0].Index != 1 || rows[1].Index != 2 {
		t.Fatalf("rows must be reindexed: %+v", rows)
	}

	if err := s.FindAndDelete(ctx, "missing"); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if err := s.DeleteAt(ctx, 3); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if err := s.DeleteAt(ctx, 1); err != nil {
		t.Fatalf("delete at: %v", err)
	}
	rows, _ = s.ListRows(ctx)
	if len(rows) != 1 || rows[0].Name != "A" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromFile(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should give empty store: %v", err)
	}
	if rows, _ := s.ListRows(context.Background()); len(rows) != 0 {
		t.Fatalf("expected empty store")
	}

	path := filepath.Join(dir, "seed.yaml")
	content := `subscriptions:
  - name: Netflix
    price: "13,49"
    period: Mensuel
    next_due: "2025-07-01"
  - name: Amazon Prime
    price: "69.90"
    period: Yearly
    next_due: "2025-11-15"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	rows, _ := s.ListRows(context.Background())
	if len(rows) != 2 || rows[0].Price != "13,49" || rows[1].Name != "Amazon Prime" || rows[1].Index != 2 {
		t.Fatalf("unexpected seeded rows %+v", rows)
	}

	if err := os.WriteFile(path, []byte("subscriptions: [\n"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}
