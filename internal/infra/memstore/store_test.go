package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/memstore"
	"github.com/boddenberg/atm-terminal-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestStore_CreateLoadSave(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	missing, err := s.LoadAccount(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.CreateAccount(ctx, domain.Account{ID: "alice", Balance: 100}))

	var conflict *domain.ErrConflict
	assert.ErrorAs(t, s.CreateAccount(ctx, domain.Account{ID: "alice"}), &conflict)

	got, err := s.LoadAccount(ctx, "alice")
	require.NoError(t, err)
	got.Balance = 999

	again, err := s.LoadAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), again.Balance, "loaded accounts must be copies")

	require.NoError(t, s.SaveAccount(ctx, *got))
	again, err = s.LoadAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(999), again.Balance)

	var notFound *domain.ErrNotFound
	assert.ErrorAs(t, s.SaveAccount(ctx, domain.Account{ID: "ghost"}), &notFound)
}

func TestStore_HistoryIsCopied(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	entries := []domain.LedgerEntry{
		{ID: "2", Kind: domain.KindWithdrawal, Amount: 500, NoteBreakdown: domain.Breakdown{500: 1}},
		{ID: "1", Kind: domain.KindDeposit, Amount: 1000},
	}
	require.NoError(t, s.SaveHistory(ctx, "alice", entries))
	entries[0].NoteBreakdown[500] = 7

	got, err := s.LoadHistory(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, int64(1), got[0].NoteBreakdown[500])

	empty, err := s.LoadHistory(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSeed_DemoAccounts(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	hasher := service.NewBcryptHasher(bcrypt.MinCost)
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	n, err := memstore.Seed(ctx, s, hasher, memstore.DemoAccounts(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	john, err := s.LoadAccount(ctx, "john_doe")
	require.NoError(t, err)
	require.NotNil(t, john)
	assert.Equal(t, int64(25000), john.Balance)
	assert.Equal(t, "Premium", john.AccountType)
	assert.True(t, hasher.Matches(john.PinHash, "1234"))
	assert.True(t, hasher.Matches(john.PasswordHash, "demo123"))

	n, err = memstore.Seed(ctx, s, hasher, memstore.DemoAccounts(), now)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding twice must not overwrite")
}
