package memstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/port"
)

// DemoAccount is a preconfigured account with plaintext credentials, hashed on seeding.
type DemoAccount struct {
	Account  domain.Account
	Password string
	Pin      string
}

// DemoAccounts are the two accounts available when DEMO_ACCOUNTS=true.
func DemoAccounts() []DemoAccount {
	return []DemoAccount{
		{
			Account: domain.Account{
				ID:            "john_doe",
				FullName:      "John Doe",
				AccountNumber: "1234567890",
				AccountType:   "Premium",
				Phone:         "+91-9876543210",
				Balance:       25000,
			},
			Password: "demo123",
			Pin:      "1234",
		},
		{
			Account: domain.Account{
				ID:            "jane_smith",
				FullName:      "Jane Smith",
				AccountNumber: "0987654321",
				AccountType:   "Savings",
				Phone:         "+91-8765432109",
				Balance:       15000,
			},
			Password: "demo456",
			Pin:      "1234",
		},
	}
}

// Seed creates each demo account that does not exist yet in store.
func Seed(ctx context.Context, store port.CredentialStore, hasher port.CredentialHasher, demos []DemoAccount, now time.Time) (int, error) {
	created := 0
	for _, d := range demos {
		acct := d.Account
		var err error
		if acct.PasswordHash, err = hasher.Hash(d.Password); err != nil {
			return created, err
		}
		if acct.PinHash, err = hasher.Hash(d.Pin); err != nil {
			return created, err
		}
		acct.CreatedAt = now

		if err := store.CreateAccount(ctx, acct); err != nil {
			var conflict *domain.ErrConflict
			if errors.As(err, &conflict) {
				continue
			}
			return created, fmt.Errorf("seed %s: %w", acct.ID, err)
		}
		created++
	}
	return created, nil
}
