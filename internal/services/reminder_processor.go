package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"abonnements/internal/amqp"
	"abonnements/internal/core"
)

// ReminderProcessor announces due-soon subscriptions. Each (name, due date)
// pair is announced at most once per calendar day.
type ReminderProcessor struct {
	ledger   *Ledger
	events   EventPublisher
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	sent map[string]core.Date

	// Lifecycle management
	lifeMu  sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReminderProcessor(ledger *Ledger, events EventPublisher, interval time.Duration) *ReminderProcessor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReminderProcessor{
		ledger:   ledger,
		events:   events,
		interval: interval,
		now:      time.Now,
		sent:     make(map[string]core.Date),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *ReminderProcessor) Start(ctx context.Context) error {
	p.lifeMu.Lock()
	if p.running {
		p.lifeMu.Unlock()
		return fmt.Errorf("reminder processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.lifeMu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Reminder processor started", "interval", p.interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (p *ReminderProcessor) Stop(ctx context.Context) error {
	p.lifeMu.Lock()
	if !p.running {
		p.lifeMu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.lifeMu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Reminder processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reminder processor stop timed out")
		return ctx.Err()
	}
}

func (p *ReminderProcessor) IsRunning() bool {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	return p.running
}

func (p *ReminderProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *ReminderProcessor) runOnce(ctx context.Context) {
	if _, err := p.ProcessDueSoon(ctx, p.now()); err != nil {
		slog.ErrorContext(ctx, "Reminder processing failed", "error", err)
	}
}

// ProcessDueSoon publishes one event per due-soon subscription not yet
// announced today and returns how many were published.
func (p *ReminderProcessor) ProcessDueSoon(ctx context.Context, now time.Time) (int, error) {
	if p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	snap, err := p.ledger.List(ctx)
	if err != nil {
		return 0, err
	}
	today := core.DateOf(now)
	due := core.DueSoon(snap.Subscriptions, today, p.ledger.DueSoonDays())

	p.mu.Lock()
	defer p.mu.Unlock()

	for k, day := range p.sent {
		if day != today {
			delete(p.sent, k)
		}
	}

	published := 0
	for _, s := range due {
		key := s.Name + "|" + s.NextDue.String()
		if _, done := p.sent[key]; done {
			continue
		}
		if p.events != nil {
			if err := p.events.PublishLedgerEvent(ctx, amqp.NewDueSoonEvent(s)); err != nil {
				slog.ErrorContext(ctx, "Failed to publish due-soon event", "name", s.Name, "error", err)
				continue
			}
		}
		slog.InfoContext(ctx, "Subscription due soon",
			"name", s.Name,
			"price", s.Price,
			"next_due", s.NextDue.String())
		p.sent[key] = today
		published++
	}

	slog.InfoContext(ctx, "Reminder processing complete",
		"due_soon", len(due),
		"published", published,
		"date", today.String())
	return published, nil
}
