package service

import (
	"math"
	"sort"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
)

// Validate checks op against the account and terminal. Rules run in a fixed
// order and the first failure is returned. It has no side effects.
func Validate(op *domain.PendingOperation, acct *domain.Account, term *domain.TerminalConfig) error {
	if op.Kind == domain.KindDeposit && op.Amount > math.MaxInt64-acct.Balance {
		return &domain.ErrInvalidAmount{Amount: op.Amount, Reason: "balance would overflow"}
	}
	if !op.Kind.Debits() {
		return nil
	}

	if op.Total() > acct.Balance {
		return &domain.ErrInsufficientFunds{Available: acct.Balance, Required: op.Total()}
	}
	if op.Amount > term.PerTransactionLimit {
		return &domain.ErrLimitExceeded{
			LimitType: domain.LimitPerTransaction,
			Limit:     term.PerTransactionLimit,
			Current:   op.Amount,
		}
	}
	if op.Kind != domain.KindWithdrawal {
		return nil
	}

	if acct.DailyWithdrawn+op.Amount > term.DailyLimit {
		return &domain.ErrLimitExceeded{
			LimitType: domain.LimitDaily,
			Limit:     term.DailyLimit,
			Current:   acct.DailyWithdrawn + op.Amount,
		}
	}

	denoms := make([]domain.Denomination, 0, len(op.NoteBreakdown))
	for d := range op.NoteBreakdown {
		denoms = append(denoms, d)
	}
	sort.Slice(denoms, func(i, j int) bool { return denoms[i] < denoms[j] })
	for _, d := range denoms {
		avail, stocked := term.Inventory[d]
		if !stocked || op.NoteBreakdown[d] > avail {
			return &domain.ErrInsufficientNotes{Denomination: d}
		}
	}
	return nil
}
