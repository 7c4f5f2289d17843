package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"abonnements/internal/amqp"
	"abonnements/internal/core"
	"abonnements/internal/services"
	"abonnements/internal/store/memory"
)

func row(name, price string) core.Row {
	return core.Row{Name: name, Price: price, Period: "Monthly", NextDue: "2025-06-05"}
}

func names(t *testing.T, st *memory.Store) []string {
	t.Helper()
	rows, err := st.ListRows(context.Background())
	if err != nil {
		t.Fatalf("ListRows: %v", err)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMirrorWorker_HandleEvent(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New(row("Gym", "30"))
	w := NewMirrorWorker(memory.New(), mirror)

	added := amqp.NewAddedEvent(core.Draft{Name: "Netflix", Price: 9.99, Period: core.Monthly, NextDue: core.NewDate(2025, 6, 5)})
	if err := w.HandleEvent(ctx, added); err != nil {
		t.Fatalf("added: %v", err)
	}
	if got := names(t, mirror); !equal(got, []string{"Gym", "Netflix"}) {
		t.Fatalf("after add: %v", got)
	}

	if err := w.HandleEvent(ctx, amqp.NewDeletedEvent("Gym")); err != nil {
		t.Fatalf("deleted: %v", err)
	}
	if err := w.HandleEvent(ctx, amqp.NewDeletedEvent("Hulu")); err != nil {
		t.Fatalf("missing record should be skipped, got %v", err)
	}
	if err := w.HandleEvent(ctx, &amqp.LedgerEvent{Type: amqp.EventDeleted, Index: 1}); err != nil {
		t.Fatalf("deleted at: %v", err)
	}
	if got := names(t, mirror); len(got) != 0 {
		t.Fatalf("expected empty mirror, got %v", got)
	}

	due := amqp.NewDueSoonEvent(core.Subscription{Name: "Netflix"})
	if err := w.HandleEvent(ctx, due); err != nil {
		t.Fatalf("due soon: %v", err)
	}
}

type downStore struct{ *memory.Store }

func (downStore) AppendRow(context.Context, core.Row) (string, error) {
	return "", core.ErrStoreUnavailable
}

func TestMirrorWorker_HandleEventStoreDown(t *testing.T) {
	w := NewMirrorWorker(memory.New(), downStore{memory.New()})
	ev := amqp.NewAddedEvent(core.Draft{Name: "x", Price: 1, Period: core.Monthly, NextDue: core.NewDate(2025, 1, 1)})
	if err := w.HandleEvent(context.Background(), ev); !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestMirrorWorker_StartupSync(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New(row("Netflix", "9.99"), row("Gym", "30"))
	mirror := memory.New(row("Netflix", "9.99"), row("Old", "1"), row("Older", "2"))
	w := NewMirrorWorker(ledger, mirror)

	rewritten, err := w.StartupSync(ctx)
	if err != nil || !rewritten {
		t.Fatalf("StartupSync = %v, %v", rewritten, err)
	}
	if got := names(t, mirror); !equal(got, []string{"Netflix", "Gym"}) {
		t.Fatalf("mirror after sync: %v", got)
	}

	rewritten, err = w.StartupSync(ctx)
	if err != nil || rewritten {
		t.Fatalf("second StartupSync = %v, %v", rewritten, err)
	}
}

// gappedStore numbers rows by grid position, so a blank row leaves a hole in
// the indexes the way spreadsheet backends do.
type gappedStore struct {
	rows []core.Row
}

func (g *gappedStore) ListRows(context.Context) ([]core.Row, error) {
	return append([]core.Row(nil), g.rows...), nil
}

func (g *gappedStore) AppendRow(_ context.Context, r core.Row) (string, error) {
	r.Index = len(g.rows) + 2
	g.rows = append(g.rows, r)
	return fmt.Sprint(r.Index), nil
}

func (g *gappedStore) FindAndDelete(context.Context, string) error {
	return core.ErrRecordNotFound
}

func (g *gappedStore) DeleteAt(_ context.Context, index int) error {
	for i, r := range g.rows {
		if r.Index == index {
			g.rows = append(g.rows[:i], g.rows[i+1:]...)
			return nil
		}
	}
	return core.ErrRecordNotFound
}

type capture struct{ events []*amqp.LedgerEvent }

func (c *capture) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func TestMirrorWorker_PositionalDeleteAcrossBlankRow(t *testing.T) {
	ctx := context.Background()
	a, b, c := row("A", "1"), row("B", "2"), row("C", "3")
	a.Index, b.Index, c.Index = 1, 3, 4
	source := &gappedStore{rows: []core.Row{a, b, c}}
	mirror := memory.New()
	w := NewMirrorWorker(source, mirror)
	if _, err := w.StartupSync(ctx); err != nil {
		t.Fatalf("StartupSync: %v", err)
	}

	pub := &capture{}
	ledger := services.NewLedger(source, pub, core.DefaultDueSoonDays)
	if err := ledger.DeleteAt(ctx, 3); err != nil {
		t.Fatalf("DeleteAt: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].Name != "B" {
		t.Fatalf("expected deletion of B, got %+v", pub.events)
	}
	if err := w.HandleEvent(ctx, pub.events[0]); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if got := names(t, mirror); !equal(got, []string{"A", "C"}) {
		t.Fatalf("mirror = %v, want [A C]", got)
	}
	if err := ledger.DeleteAt(ctx, 2); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("blank position should not be deletable, got %v", err)
	}
}

func TestMirrorWorker_PositionalDeletePrefersExactRecord(t *testing.T) {
	ctx := context.Background()
	old := row("Gym", "20")
	cur := row("Gym", "30")
	mirror := memory.New(old, cur)
	w := NewMirrorWorker(memory.New(), mirror)

	if err := w.HandleEvent(ctx, amqp.NewDeletedAtEvent(2, cur)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	rows, _ := mirror.ListRows(ctx)
	if len(rows) != 1 || rows[0].Price != "20" {
		t.Fatalf("wrong Gym removed: %+v", rows)
	}

	if err := w.HandleEvent(ctx, amqp.NewDeletedAtEvent(7, row("Hulu", "1"))); err != nil {
		t.Fatalf("absent record should be skipped, got %v", err)
	}
}
