package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"abonnements/internal/amqp"
	"abonnements/internal/core"
	"abonnements/internal/store/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (f *fakePublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

// failingStore simulates an unreachable backend.
type failingStore struct{}

func (failingStore) ListRows(context.Context) ([]core.Row, error) {
	return nil, core.ErrStoreUnavailable
}
func (failingStore) AppendRow(context.Context, core.Row) (string, error) {
	return "", core.ErrStoreUnavailable
}
func (failingStore) FindAndDelete(context.Context, string) error { return core.ErrStoreUnavailable }
func (failingStore) DeleteAt(context.Context, int) error         { return core.ErrStoreUnavailable }

func fixedClock(y, m, d int) func() time.Time {
	return func() time.Time { return time.Date(y, time.Month(m), d, 15, 30, 0, 0, time.Local) }
}

func TestLedger_AddListRoundTrip(t *testing.T) {
	pub := &fakePublisher{}
	l := NewLedger(memory.New(), pub, core.DefaultDueSoonDays)
	ctx := context.Background()

	d := core.Draft{Name: "Netflix", Price: 9.99, Period: core.Monthly, NextDue: core.NewDate(2024, 6, 5)}
	if _, err := l.Add(ctx, d); err != nil {
		t.Fatalf("Add: %v", err)
	}

	snap, err := l.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snap.Subscriptions) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(snap.Subscriptions))
	}
	got := snap.Subscriptions[0]
	if diff := got.Price - 9.99; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("price = %v, want 9.99", got.Price)
	}
	if got.Name != "Netflix" || got.Period != core.Monthly || got.NextDue != d.NextDue {
		t.Errorf("unexpected subscription: %+v", got)
	}
	if len(pub.events) != 1 || pub.events[0].Type != amqp.EventAdded {
		t.Errorf("expected one added event, got %+v", pub.events)
	}
}

func TestLedger_AddRejectsInvalid(t *testing.T) {
	gw := memory.New()
	l := NewLedger(gw, nil, 7)

	tests := []struct {
		name  string
		draft core.Draft
		want  error
	}{
		{"empty name", core.Draft{Name: "  ", Price: 1, Period: core.Monthly, NextDue: core.NewDate(2024, 1, 1)}, core.ErrEmptyName},
		{"negative price", core.Draft{Name: "x", Price: -1, Period: core.Monthly, NextDue: core.NewDate(2024, 1, 1)}, core.ErrNegativePrice},
		{"bad period", core.Draft{Name: "x", Price: 1, Period: "Weekly", NextDue: core.NewDate(2024, 1, 1)}, core.ErrInvalidPeriod},
		{"no date", core.Draft{Name: "x", Price: 1, Period: core.Yearly}, core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Add(context.Background(), tt.draft); !errors.Is(err, tt.want) {
				t.Errorf("Add() error = %v, want %v", err, tt.want)
			}
		})
	}
	rows, _ := gw.ListRows(context.Background())
	if len(rows) != 0 {
		t.Errorf("invalid drafts must not be stored, got %v", rows)
	}
}

func TestLedger_DeleteNotFoundLeavesStore(t *testing.T) {
	gw := memory.New(core.Row{Name: "Spotify", Price: "10.99", Period: "Monthly", NextDue: "2024-06-10"})
	pub := &fakePublisher{}
	l := NewLedger(gw, pub, 7)
	ctx := context.Background()

	err := l.Delete(ctx, "Disney")
	if !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	rows, _ := gw.ListRows(ctx)
	if len(rows) != 1 {
		t.Errorf("store changed on not-found delete: %v", rows)
	}
	if len(pub.events) != 0 {
		t.Errorf("no event expected, got %+v", pub.events)
	}
	if err := l.Delete(ctx, "   "); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestLedger_DeleteFirstMatchOnly(t *testing.T) {
	gw := memory.New(
		core.Row{Name: "Netflix", Price: "9.99", Period: "Monthly", NextDue: "2024-06-05"},
		core.Row{Name: "Netflix", Price: "12.99", Period: "Monthly", NextDue: "2024-07-05"},
	)
	l := NewLedger(gw, nil, 7)
	ctx := context.Background()

	if err := l.Delete(ctx, "Netflix"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	snap, _ := l.List(ctx)
	if len(snap.Subscriptions) != 1 || snap.Subscriptions[0].Price != 12.99 {
		t.Errorf("expected the second Netflix row to remain, got %+v", snap.Subscriptions)
	}
}

func TestLedger_DeleteAt(t *testing.T) {
	gw := memory.New(
		core.Row{Name: "A", Price: "1", Period: "Monthly", NextDue: "2024-06-05"},
		core.Row{Name: "B", Price: "2", Period: "Monthly", NextDue: "2024-06-05"},
	)
	pub := &fakePublisher{}
	l := NewLedger(gw, pub, 7)
	ctx := context.Background()

	if err := l.DeleteAt(ctx, 3); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
	if err := l.DeleteAt(ctx, 1); err != nil {
		t.Fatalf("DeleteAt: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].Index != 1 {
		t.Fatalf("expected positional delete event, got %+v", pub.events)
	}
	removed, ok := pub.events[0].Removed()
	want := core.Row{Name: "A", Price: "1", Period: "Monthly", NextDue: "2024-06-05"}
	if !ok || removed != want {
		t.Errorf("event should carry the removed record, got %+v", removed)
	}
}

func TestLedger_Summary(t *testing.T) {
	gw := memory.New(
		core.Row{Name: "Netflix", Price: "9,99 €", Period: "Mensuel", NextDue: "2024-06-05"},
		core.Row{Name: "Cloud", Price: "120", Period: "Annuel", NextDue: "2024-12-01"},
		core.Row{Name: "Broken", Price: "abc", Period: "Monthly", NextDue: "2024-06-03"},
		core.Row{Name: "", Price: "5", Period: "Monthly", NextDue: "2024-06-03"},
	)
	l := NewLedger(gw, nil, 7)
	l.now = fixedClock(2024, 6, 1)

	sum, snap, err := l.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Count != 3 || sum.Skipped != 1 || sum.Unparsed != 1 {
		t.Errorf("unexpected counts: %+v", sum)
	}
	if diff := sum.MonthlyTotal - 19.99; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("MonthlyTotal = %v, want 19.99", sum.MonthlyTotal)
	}
	if len(sum.DueSoon) != 2 || sum.DueSoon[0].Name != "Netflix" || sum.DueSoon[1].Name != "Broken" {
		t.Errorf("unexpected due soon: %+v", sum.DueSoon)
	}
	if len(snap.Skipped) != 1 || snap.Skipped[0].Index != 4 {
		t.Errorf("unexpected skipped rows: %+v", snap.Skipped)
	}
}

func TestLedger_StoreUnavailable(t *testing.T) {
	l := NewLedger(failingStore{}, nil, 7)
	ctx := context.Background()

	if _, err := l.List(ctx); !errors.Is(err, core.ErrStoreUnavailable) {
		t.Errorf("List: expected ErrStoreUnavailable, got %v", err)
	}
	d := core.Draft{Name: "x", Price: 1, Period: core.Monthly, NextDue: core.NewDate(2024, 1, 1)}
	if _, err := l.Add(ctx, d); !errors.Is(err, core.ErrStoreUnavailable) {
		t.Errorf("Add: expected ErrStoreUnavailable, got %v", err)
	}
	if _, _, err := l.Summary(ctx); !errors.Is(err, core.ErrStoreUnavailable) {
		t.Errorf("Summary: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestLedger_PublishFailureIsNotFatal(t *testing.T) {
	l := NewLedger(memory.New(), &fakePublisher{err: errors.New("broker down")}, 7)
	d := core.Draft{Name: "x", Price: 1, Period: core.Monthly, NextDue: core.NewDate(2024, 1, 1)}
	if _, err := l.Add(context.Background(), d); err != nil {
		t.Errorf("Add should succeed when publishing fails, got %v", err)
	}
}
