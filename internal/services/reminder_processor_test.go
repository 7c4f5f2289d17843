package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"abonnements/internal/amqp"
	"abonnements/internal/core"
	"abonnements/internal/store/memory"
)

func TestReminderProcessor_OncePerDay(t *testing.T) {
	gw := memory.New(
		core.Row{Name: "Netflix", Price: "9.99", Period: "Monthly", NextDue: "2024-06-05"},
		core.Row{Name: "Cloud", Price: "120", Period: "Yearly", NextDue: "2024-12-01"},
		core.Row{Name: "Late", Price: "3", Period: "Monthly", NextDue: "2024-05-20"},
	)
	pub := &fakePublisher{}
	p := NewReminderProcessor(NewLedger(gw, nil, 7), pub, time.Hour)
	ctx := context.Background()
	morning := time.Date(2024, 6, 1, 8, 0, 0, 0, time.Local)

	n, err := p.ProcessDueSoon(ctx, morning)
	if err != nil {
		t.Fatalf("ProcessDueSoon: %v", err)
	}
	if n != 1 || len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got n=%d events=%+v", n, pub.events)
	}
	ev := pub.events[0]
	if ev.Type != amqp.EventDueSoon || ev.Name != "Netflix" || ev.NextDue != "2024-06-05" {
		t.Errorf("unexpected event: %+v", ev)
	}

	if n, _ := p.ProcessDueSoon(ctx, morning.Add(6*time.Hour)); n != 0 {
		t.Errorf("same day should not republish, got %d", n)
	}
	if n, _ := p.ProcessDueSoon(ctx, morning.AddDate(0, 0, 1)); n != 1 {
		t.Errorf("next day should publish again, got %d", n)
	}
}

func TestReminderProcessor_RetriesFailedPublish(t *testing.T) {
	gw := memory.New(core.Row{Name: "Netflix", Price: "9.99", Period: "Monthly", NextDue: "2024-06-05"})
	pub := &fakePublisher{err: errors.New("broker down")}
	p := NewReminderProcessor(NewLedger(gw, nil, 7), pub, time.Hour)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.Local)

	if n, err := p.ProcessDueSoon(ctx, now); err != nil || n != 0 {
		t.Fatalf("expected 0 published without error, got n=%d err=%v", n, err)
	}
	pub.err = nil
	if n, _ := p.ProcessDueSoon(ctx, now.Add(time.Hour)); n != 1 {
		t.Errorf("failed event should be retried on next run, got %d", n)
	}
}

func TestReminderProcessor_StoreError(t *testing.T) {
	p := NewReminderProcessor(NewLedger(failingStore{}, nil, 7), &fakePublisher{}, time.Hour)
	if _, err := p.ProcessDueSoon(context.Background(), time.Now()); !errors.Is(err, core.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := (&ReminderProcessor{}).ProcessDueSoon(context.Background(), time.Now()); err == nil {
		t.Error("expected error for uninitialized processor")
	}
}

func TestReminderProcessor_StartStop(t *testing.T) {
	gw := memory.New(core.Row{Name: "Netflix", Price: "9.99", Period: "Monthly", NextDue: "2024-06-05"})
	pub := &fakePublisher{}
	p := NewReminderProcessor(NewLedger(gw, nil, 7), pub, time.Hour)
	p.now = func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.Local) }
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}
	if !p.IsRunning() {
		t.Error("processor should report running")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not report running after Stop")
	}

	// The loop runs once on startup before waiting for the ticker.
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 1 {
		t.Errorf("expected startup run to publish 1 event, got %d", len(pub.events))
	}
}
