package domain

// ============================================================
// Operations
// ============================================================

// OperationKind identifies what a staged operation does.
type OperationKind string

const (
	KindWithdrawal    OperationKind = "withdrawal"
	KindDeposit       OperationKind = "deposit"
	KindTransfer      OperationKind = "transfer"
	KindBalanceCheck  OperationKind = "balance_check"
	KindHistoryAccess OperationKind = "history_access"
)

// ParseOperationKind validates a kind received from a caller.
func ParseOperationKind(s string) (OperationKind, bool) {
	switch k := OperationKind(s); k {
	case KindWithdrawal, KindDeposit, KindTransfer, KindBalanceCheck, KindHistoryAccess:
		return k, true
	}
	return "", false
}

// IsMonetary reports whether the kind moves money and is recorded in the ledger.
func (k OperationKind) IsMonetary() bool {
	return k == KindWithdrawal || k == KindDeposit || k == KindTransfer
}

// Debits reports whether the kind takes amount+fee out of the balance.
func (k OperationKind) Debits() bool {
	return k == KindWithdrawal || k == KindTransfer
}

// NoteMode selects how a withdrawal's notes are chosen.
type NoteMode string

const (
	NotesAuto   NoteMode = "auto"
	NotesCustom NoteMode = "custom"
)

// OperationRequest is the body for POST /v1/operations.
type OperationRequest struct {
	Kind          string           `json:"type"`
	Amount        int64            `json:"amount"`
	NoteMode      string           `json:"note_selection,omitempty"`
	Notes         map[string]int64 `json:"notes,omitempty"`
	RecipientID   string           `json:"recipient_account,omitempty"`
	RecipientName string           `json:"recipient_name,omitempty"`
}

// PendingOperation is an operation staged but not yet authorized by PIN.
type PendingOperation struct {
	Kind          OperationKind `json:"type"`
	Amount        int64         `json:"amount"`
	Fee           int64         `json:"fee"`
	NoteMode      NoteMode      `json:"note_selection,omitempty"`
	NoteBreakdown Breakdown     `json:"notes_breakdown,omitempty"`
	RecipientID   string        `json:"recipient_account,omitempty"`
	RecipientName string        `json:"recipient_name,omitempty"`
}

// Total is the amount charged against the balance for debiting kinds.
func (op *PendingOperation) Total() int64 {
	return op.Amount + op.Fee
}

// StagedResponse is returned after an operation is staged.
type StagedResponse struct {
	Pending           PendingOperation `json:"pending"`
	AttemptsRemaining int              `json:"attempts_remaining"`
}

// PinRequest is the body for POST /v1/operations/pin.
type PinRequest struct {
	Pin string `json:"pin"`
}

// Outcome is what a verified and committed operation returns to the caller.
// Monetary kinds carry Entry; balance_check carries Balance; history_access carries History.
type Outcome struct {
	Kind    OperationKind `json:"type"`
	Entry   *LedgerEntry  `json:"entry,omitempty"`
	Balance *int64        `json:"balance,omitempty"`
	History []LedgerEntry `json:"history,omitempty"`
}
