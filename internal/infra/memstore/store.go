// Package memstore keeps accounts and transaction logs in process memory.
// It is the default backend when Supabase is not configured.
package memstore

import (
	"context"
	"sync"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
)

// Store implements port.CredentialStore and port.LedgerStore.
// Values are copied on the way in and out.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	history  map[string][]domain.LedgerEntry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[string]domain.Account),
		history:  make(map[string][]domain.LedgerEntry),
	}
}

func (s *Store) LoadAccount(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) SaveAccount(_ context.Context, account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return &domain.ErrNotFound{Resource: "account", ID: account.ID}
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *Store) CreateAccount(_ context.Context, account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; ok {
		return &domain.ErrConflict{Message: "username already registered"}
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *Store) LoadHistory(_ context.Context, accountID string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneEntries(s.history[accountID]), nil
}

func (s *Store) SaveHistory(_ context.Context, accountID string, entries []domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[accountID] = cloneEntries(entries)
	return nil
}

func cloneEntries(in []domain.LedgerEntry) []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, len(in))
	for i, e := range in {
		e.NoteBreakdown = e.NoteBreakdown.Clone()
		out[i] = e
	}
	return out
}
