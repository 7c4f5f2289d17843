package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"abonnements/internal/core"
	"abonnements/internal/store"
)

// Ensure interface conformance
var _ store.Gateway = (*Store)(nil)

// Store keeps the ledger in process memory. Rows keep their insertion order.
type Store struct {
	mu   sync.Mutex
	rows []core.Row
}

// seedEntry is one record of the YAML seed file.
type seedEntry struct {
	Name    string `yaml:"name"`
	Price   string `yaml:"price"`
	Period  string `yaml:"period"`
	NextDue string `yaml:"next_due"`
}

type seedFile struct {
	Subscriptions []seedEntry `yaml:"subscriptions"`
}

func New(rows ...core.Row) *Store {
	s := &Store{rows: append([]core.Row(nil), rows...)}
	s.reindex()
	return s
}

// NewFromFile seeds the store from a YAML file. A missing file yields an
// empty store.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	rows := make([]core.Row, 0, len(sf.Subscriptions))
	for _, e := range sf.Subscriptions {
		rows = append(rows, core.Row{Name: e.Name, Price: e.Price, Period: e.Period, NextDue: e.NextDue})
	}
	return New(rows...), nil
}

// ListRows returns a copy of the stored rows.
func (s *Store) ListRows(_ context.Context) ([]core.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Row(nil), s.rows...), nil
}

// AppendRow stores the row and returns a synthetic row reference.
func (s *Store) AppendRow(_ context.Context, r core.Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, r)
	s.reindex()
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) FindAndDelete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if store.MatchName(r.Name, name) {
			s.removeAt(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", core.ErrRecordNotFound, name)
}

func (s *Store) DeleteAt(_ context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 1 || index > len(s.rows) {
		return fmt.Errorf("%w: row %d", core.ErrRecordNotFound, index)
	}
	s.removeAt(index - 1)
	return nil
}

func (s *Store) removeAt(i int) {
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	s.reindex()
}

func (s *Store) reindex() {
	for i := range s.rows {
		s.rows[i].Index = i + 1
	}
}
