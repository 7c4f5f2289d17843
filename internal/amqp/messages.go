package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"abonnements/internal/core"
)

type EventType string

const (
	EventAdded   EventType = "added"
	EventDeleted EventType = "deleted"
	EventDueSoon EventType = "due_soon"
)

// LedgerEvent describes a change to the ledger or an upcoming payment.
// Positional deletions carry the ledger index and the removed record as
// stored, PriceText included, because indexes differ between stores.
type LedgerEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Name      string    `json:"name,omitempty"`
	Index     int       `json:"index,omitempty"`
	Price     float64   `json:"price,omitempty"`
	PriceText string    `json:"price_text,omitempty"`
	Period    string    `json:"period,omitempty"`
	NextDue   string    `json:"next_due,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newEvent(t EventType) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

// NewAddedEvent describes a subscription that was just stored.
func NewAddedEvent(d core.Draft) *LedgerEvent {
	ev := newEvent(EventAdded)
	ev.Name = core.NormalizeName(d.Name)
	ev.Price = d.Price
	ev.Period = string(d.Period)
	ev.NextDue = d.NextDue.String()
	return ev
}

func NewDeletedEvent(name string) *LedgerEvent {
	ev := newEvent(EventDeleted)
	ev.Name = core.NormalizeName(name)
	return ev
}

// NewDeletedAtEvent describes the removal of r, found at index in the ledger.
func NewDeletedAtEvent(index int, r core.Row) *LedgerEvent {
	ev := newEvent(EventDeleted)
	ev.Index = index
	ev.Name = core.NormalizeName(r.Name)
	ev.PriceText = r.Price
	ev.Period = r.Period
	ev.NextDue = r.NextDue
	return ev
}

// Removed returns the record carried by a positional deletion and whether
// the event carries one at all.
func (m *LedgerEvent) Removed() (core.Row, bool) {
	r := core.Row{Name: m.Name, Price: m.PriceText, Period: m.Period, NextDue: m.NextDue}
	return r, r != core.Row{}
}

func NewDueSoonEvent(s core.Subscription) *LedgerEvent {
	ev := newEvent(EventDueSoon)
	ev.Name = s.Name
	ev.Price = s.Price
	ev.Period = string(s.Period)
	ev.NextDue = s.NextDue.String()
	return ev
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON creates a message from JSON bytes
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Row rebuilds the stored record carried by an added event.
func (m *LedgerEvent) Row() core.Row {
	return core.Row{
		Name:    m.Name,
		Price:   core.FormatPrice(m.Price),
		Period:  m.Period,
		NextDue: m.NextDue,
	}
}
