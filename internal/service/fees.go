package service

import "github.com/boddenberg/atm-terminal-go/internal/domain"

// Fee schedule, in whole currency units.
const (
	withdrawalFeeThreshold = 2000
	withdrawalFee          = 10

	transferFeeThreshold = 5000
	transferFeeHigh      = 25
	transferFeeLow       = 10
)

// FeeFor returns the fee charged for an operation of kind and amount.
func FeeFor(kind domain.OperationKind, amount int64) int64 {
	switch kind {
	case domain.KindWithdrawal:
		if amount > withdrawalFeeThreshold {
			return withdrawalFee
		}
	case domain.KindTransfer:
		if amount > transferFeeThreshold {
			return transferFeeHigh
		}
		return transferFeeLow
	}
	return 0
}
