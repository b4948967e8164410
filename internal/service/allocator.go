package service

import (
	"github.com/boddenberg/atm-terminal-go/internal/domain"
)

// ============================================================
// Denomination allocation
// ============================================================

// Allocate splits amount into notes, highest denomination first, without
// taking more of any denomination than inv holds. inv is never modified.
// A remainder that the smallest stocked denomination cannot absorb yields
// *domain.ErrInsufficientNotes.
func Allocate(amount int64, inv domain.Inventory) (domain.Breakdown, error) {
	if amount <= 0 {
		return nil, &domain.ErrInvalidAmount{Amount: amount, Reason: "must be positive"}
	}

	out := make(domain.Breakdown)
	remaining := amount
	for _, d := range inv.Denominations() {
		take := remaining / int64(d)
		if avail := inv[d]; take > avail {
			take = avail
		}
		if take > 0 {
			out[d] = take
			remaining -= take * int64(d)
		}
	}

	if remaining != 0 {
		return nil, &domain.ErrInsufficientNotes{}
	}
	return out, nil
}

// ValidateWithdrawalAmount checks amount is positive and dispensable in
// principle, i.e. a multiple of the smallest stocked denomination.
func ValidateWithdrawalAmount(amount int64, inv domain.Inventory) error {
	if amount <= 0 {
		return &domain.ErrInvalidAmount{Amount: amount, Reason: "must be positive"}
	}
	smallest := int64(inv.Smallest())
	if smallest == 0 {
		return &domain.ErrInsufficientNotes{}
	}
	if amount%smallest != 0 {
		return &domain.ErrInvalidAmount{Amount: amount, Reason: "must be a multiple of the smallest note"}
	}
	return nil
}

// BreakdownFromCounts builds a custom breakdown from caller-supplied note
// counts. Denominations the terminal does not stock are rejected here; stock
// levels are checked by the validator at commit.
func BreakdownFromCounts(counts map[domain.Denomination]int64, inv domain.Inventory) (domain.Breakdown, error) {
	out := make(domain.Breakdown)
	for d, n := range counts {
		if n < 0 {
			return nil, &domain.ErrValidation{Field: "notes", Message: "note counts cannot be negative"}
		}
		if n == 0 {
			continue
		}
		if _, ok := inv[d]; !ok {
			return nil, &domain.ErrInsufficientNotes{Denomination: d}
		}
		out[d] = n
	}
	if len(out) == 0 {
		return nil, &domain.ErrInvalidAmount{Amount: 0, Reason: "select at least one note"}
	}
	return out, nil
}
