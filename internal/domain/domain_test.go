package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/boddenberg/atm-terminal-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInventory(t *testing.T) {
	inv, err := domain.ParseInventory("100:500, 200:300,500:200")
	require.NoError(t, err)
	assert.Equal(t, domain.Inventory{100: 500, 200: 300, 500: 200}, inv)
	assert.Equal(t, []domain.Denomination{500, 200, 100}, inv.Denominations())
	assert.Equal(t, domain.Denomination(100), inv.Smallest())
	assert.Equal(t, int64(100*500+200*300+500*200), inv.Value())

	for _, bad := range []string{"", "100", "x:5", "0:5", "100:-1", "100:many"} {
		_, err := domain.ParseInventory(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestBreakdown_TotalsAndClone(t *testing.T) {
	b := domain.Breakdown{500: 2, 100: 3}
	assert.Equal(t, int64(1300), b.Total())
	assert.Equal(t, int64(5), b.Notes())

	cp := b.Clone()
	cp[500] = 0
	assert.Equal(t, int64(2), b[500])
}

func TestFormatRupees(t *testing.T) {
	cases := map[int64]string{
		0:        "₹0.00",
		500:      "₹500.00",
		2500:     "₹2,500.00",
		22490:    "₹22,490.00",
		100000:   "₹1,00,000.00",
		12345678: "₹1,23,45,678.00",
		-2500:    "-₹2,500.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, domain.FormatRupees(in), "amount %d", in)
	}
}

func TestLedgerEntry_NotificationText(t *testing.T) {
	e := domain.LedgerEntry{Kind: domain.KindWithdrawal, Amount: 2500, BalanceAfter: 22490}
	assert.Equal(t, "WITHDRAWAL of ₹2,500.00 completed. Balance: ₹22,490.00.", e.NotificationText())
}

func TestAccount_MaskedAccountNumber(t *testing.T) {
	a := domain.Account{AccountNumber: "1234567890"}
	assert.Equal(t, "****7890", a.MaskedAccountNumber())
	assert.Equal(t, "****0000", (&domain.Account{}).MaskedAccountNumber())
}

func TestAccount_CredentialsNotSerialized(t *testing.T) {
	b, err := json.Marshal(domain.Account{ID: "john_doe", PinHash: "secret-pin", PasswordHash: "secret-pass"})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret")
}

func TestOperationKind(t *testing.T) {
	k, ok := domain.ParseOperationKind("transfer")
	require.True(t, ok)
	assert.True(t, k.IsMonetary())
	assert.True(t, k.Debits())

	assert.False(t, domain.KindDeposit.Debits())
	assert.False(t, domain.KindBalanceCheck.IsMonetary())

	_, ok = domain.ParseOperationKind("loan")
	assert.False(t, ok)
}

func TestLedger_Prepend(t *testing.T) {
	var l domain.Ledger
	l.Prepend(domain.LedgerEntry{ID: "1"})
	l.Prepend(domain.LedgerEntry{ID: "2"})
	require.Len(t, l.Entries, 2)
	assert.Equal(t, "2", l.Entries[0].ID)
}
