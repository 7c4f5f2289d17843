package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"abonnements/internal/amqp"
	"abonnements/internal/core"
	applog "abonnements/internal/log"
	"abonnements/internal/store"
)

// EventPublisher is implemented by *amqp.Client.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// Ledger runs the user-facing operations against one store. Every call goes
// to the store; nothing is cached between calls.
type Ledger struct {
	store       store.Gateway
	events      EventPublisher
	dueSoonDays int
	now         func() time.Time
	log         *applog.StructuredLogger
}

// NewLedger wires a ledger to its store. events may be nil.
func NewLedger(gw store.Gateway, events EventPublisher, dueSoonDays int) *Ledger {
	if dueSoonDays < 0 {
		dueSoonDays = core.DefaultDueSoonDays
	}
	return &Ledger{
		store:       gw,
		events:      events,
		dueSoonDays: dueSoonDays,
		now:         time.Now,
		log:         applog.NewStructuredLogger(applog.Default(applog.ComponentLedger)),
	}
}

// Today is the local calendar date used for the due-soon window.
func (l *Ledger) Today() core.Date {
	return core.DateOf(l.now())
}

func (l *Ledger) DueSoonDays() int {
	return l.dueSoonDays
}

// List reads every record. Malformed rows are reported in the snapshot and
// left out of the subscriptions.
func (l *Ledger) List(ctx context.Context) (core.Snapshot, error) {
	rows, err := l.store.ListRows(ctx)
	if err != nil {
		l.log.LogError(ctx, "Failed to read ledger", err, applog.OpList, nil)
		return core.Snapshot{}, fmt.Errorf("list subscriptions: %w", err)
	}
	snap := core.NewSnapshot(rows)
	for _, sk := range snap.Skipped {
		slog.WarnContext(ctx, "Skipping malformed ledger row", "row_index", sk.Index, "reason", sk.Reason)
	}
	return snap, nil
}

// Add validates the draft and appends it in canonical form.
func (l *Ledger) Add(ctx context.Context, d core.Draft) (string, error) {
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("invalid subscription: %w", err)
	}
	row := d.ToRow()
	ref, err := l.store.AppendRow(ctx, row)
	if err != nil {
		l.log.LogError(ctx, "Failed to append subscription", err, applog.OpAppend,
			applog.LogFields{applog.FieldName: row.Name})
		return "", fmt.Errorf("add subscription: %w", err)
	}
	l.log.LogSubscriptionAdded(ctx, row.Name, d.Price, row.Period, row.NextDue, ref)

	l.publish(ctx, amqp.NewAddedEvent(d))
	return ref, nil
}

// Delete removes the first record whose name matches.
func (l *Ledger) Delete(ctx context.Context, name string) error {
	key := core.NormalizeName(name)
	if key == "" {
		return core.ErrEmptyName
	}
	if err := l.store.FindAndDelete(ctx, key); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	l.log.LogSubscriptionDeleted(ctx, key, 0)
	l.publish(ctx, amqp.NewDeletedEvent(key))
	return nil
}

// DeleteAt removes the record at a 1-based position. Positions are those
// reported by List; a position that List does not show is not found.
func (l *Ledger) DeleteAt(ctx context.Context, index int) error {
	rows, err := l.store.ListRows(ctx)
	if err != nil {
		return fmt.Errorf("delete row %d: %w", index, err)
	}
	var target *core.Row
	for i := range rows {
		if rows[i].Index == index {
			target = &rows[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("delete row %d: %w", index, core.ErrRecordNotFound)
	}

	if err := l.store.DeleteAt(ctx, index); err != nil {
		return fmt.Errorf("delete row %d: %w", index, err)
	}
	l.log.LogSubscriptionDeleted(ctx, target.Name, index)
	l.publish(ctx, amqp.NewDeletedAtEvent(index, *target))
	return nil
}

// Summary reads the ledger and derives count, totals and the due-soon set.
func (l *Ledger) Summary(ctx context.Context) (core.Summary, core.Snapshot, error) {
	snap, err := l.List(ctx)
	if err != nil {
		return core.Summary{}, core.Snapshot{}, err
	}
	return core.Summarize(snap, l.Today(), l.dueSoonDays), snap, nil
}

// publish never fails the caller: the store is the source of truth.
func (l *Ledger) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if l.events == nil {
		return
	}
	if err := l.events.PublishLedgerEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event", "type", ev.Type, "name", ev.Name, "error", err)
	}
}
