// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
)

// CredentialStore loads and saves account records by account ID (username).
type CredentialStore interface {
	// LoadAccount returns (nil, nil) when the account does not exist.
	LoadAccount(ctx context.Context, id string) (*domain.Account, error)
	SaveAccount(ctx context.Context, account domain.Account) error
	// CreateAccount fails with *domain.ErrConflict when the ID is taken.
	CreateAccount(ctx context.Context, account domain.Account) error
}

// LedgerStore persists a user's transaction log, newest first.
type LedgerStore interface {
	LoadHistory(ctx context.Context, accountID string) ([]domain.LedgerEntry, error)
	SaveHistory(ctx context.Context, accountID string, entries []domain.LedgerEntry) error
}

// NotificationSink delivers a best-effort message about a committed entry.
type NotificationSink interface {
	Notify(ctx context.Context, accountID string, entry domain.LedgerEntry) error
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
	// Today returns the local calendar date as YYYY-MM-DD.
	Today() string
}

// CredentialHasher hashes and compares PINs and passwords one-way.
type CredentialHasher interface {
	Hash(secret string) (string, error)
	Matches(hash, secret string) bool
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
