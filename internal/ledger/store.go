package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the trade book. Append records a new trade, Update persists
// a change to an existing one.
type Store interface {
	Load() ([]*Trade, error)
	Append(t *Trade) error
	Update(t *Trade) error
}

// JSONStore keeps the whole history in a single JSON file, rewritten on every
// change. Fine for a single-operator bot; the Postgres repository covers
// anything bigger.
type JSONStore struct {
	mu     sync.Mutex
	path   string
	trades []*Trade
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Load() ([]*Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.trades = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var trades []*Trade
	if err := json.Unmarshal(data, &trades); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	s.trades = trades

	out := make([]*Trade, len(trades))
	copy(out, trades)
	return out, nil
}

func (s *JSONStore) Append(t *Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
	return s.flush()
}

func (s *JSONStore) Update(t *Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.trades {
		if existing.ID == t.ID {
			s.trades[i] = t
			return s.flush()
		}
	}
	return fmt.Errorf("trade %s not in store", t.ID)
}

// flush rewrites the history file wholesale. Callers must hold the lock.
func (s *JSONStore) flush() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(s.trades, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling trade history: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}
