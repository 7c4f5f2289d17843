package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"abonnements/internal/amqp"
	"abonnements/internal/core"
	"abonnements/internal/store"
)

// MirrorWorker keeps a second store in step with the ledger by replaying
// ledger events, e.g. a shared spreadsheet fed from a local sqlite ledger.
// The mirror is never read by the ledger itself.
type MirrorWorker struct {
	source store.RowLister
	target store.Gateway
}

func NewMirrorWorker(source store.RowLister, target store.Gateway) *MirrorWorker {
	return &MirrorWorker{source: source, target: target}
}

// HandleEvent applies one event to the mirror. Deletions that find nothing
// are logged and treated as applied, so a mirror that drifted does not block
// the queue.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	switch ev.Type {
	case amqp.EventAdded:
		row := ev.Row()
		ref, err := w.target.AppendRow(ctx, row)
		if err != nil {
			return fmt.Errorf("mirror add %q: %w", row.Name, err)
		}
		slog.InfoContext(ctx, "Mirrored subscription", "id", ev.ID, "name", row.Name, "ref", ref)
		return nil

	case amqp.EventDeleted:
		err := w.applyDelete(ctx, ev)
		if errors.Is(err, core.ErrRecordNotFound) {
			slog.WarnContext(ctx, "Mirror has no matching record, skipping delete",
				"id", ev.ID, "name", ev.Name, "row_index", ev.Index)
			return nil
		}
		if err != nil {
			return fmt.Errorf("mirror delete: %w", err)
		}
		slog.InfoContext(ctx, "Mirrored deletion", "id", ev.ID, "name", ev.Name, "row_index", ev.Index)
		return nil

	case amqp.EventDueSoon:
		return nil
	}

	slog.WarnContext(ctx, "Ignoring unknown ledger event", "id", ev.ID, "type", ev.Type)
	return nil
}

// applyDelete removes the mirror's copy of a deleted record. Positional
// deletions are matched by content, since the mirror holds no blank rows
// and its positions drift from the ledger's. The raw index is used only
// for events that carry no record.
func (w *MirrorWorker) applyDelete(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev.Index <= 0 {
		return w.target.FindAndDelete(ctx, ev.Name)
	}
	removed, ok := ev.Removed()
	if !ok {
		return w.target.DeleteAt(ctx, ev.Index)
	}

	rows, err := w.target.ListRows(ctx)
	if err != nil {
		return err
	}
	at := -1
	for _, r := range rows {
		if sameRow(r, removed) {
			at = r.Index
			break
		}
	}
	if at < 0 && removed.Name != "" {
		for _, r := range rows {
			if store.MatchName(r.Name, removed.Name) {
				at = r.Index
				break
			}
		}
	}
	if at < 0 {
		return fmt.Errorf("%w: %q", core.ErrRecordNotFound, removed.Name)
	}
	return w.target.DeleteAt(ctx, at)
}

// StartupSync rewrites the mirror from the ledger when their rows differ. It
// recovers from events missed while the worker was down. Returns whether the
// mirror was rewritten.
func (w *MirrorWorker) StartupSync(ctx context.Context) (bool, error) {
	want, err := w.source.ListRows(ctx)
	if err != nil {
		return false, fmt.Errorf("read ledger: %w", err)
	}
	have, err := w.target.ListRows(ctx)
	if err != nil {
		return false, fmt.Errorf("read mirror: %w", err)
	}
	if sameRows(want, have) {
		slog.InfoContext(ctx, "Mirror is up to date", "rows", len(want))
		return false, nil
	}

	slog.InfoContext(ctx, "Mirror differs from ledger, rewriting",
		"ledger_rows", len(want),
		"mirror_rows", len(have))

	// Delete from the end so earlier positions stay valid.
	for i := len(have); i >= 1; i-- {
		if err := w.target.DeleteAt(ctx, i); err != nil {
			return false, fmt.Errorf("clear mirror row %d: %w", i, err)
		}
	}
	for _, r := range want {
		if _, err := w.target.AppendRow(ctx, r); err != nil {
			return false, fmt.Errorf("copy %q to mirror: %w", r.Name, err)
		}
	}

	slog.InfoContext(ctx, "Mirror rewritten", "rows", len(want))
	return true, nil
}

func sameRows(a, b []core.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameRow(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sameRow compares stored content, ignoring position and name padding.
func sameRow(a, b core.Row) bool {
	a.Index, b.Index = 0, 0
	a.Name, b.Name = core.NormalizeName(a.Name), core.NormalizeName(b.Name)
	return a == b
}
