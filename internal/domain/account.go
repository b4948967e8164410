package domain

import "time"

// ============================================================
// Accounts
// ============================================================

// Account is a terminal customer's account record.
// PinHash and PasswordHash are opaque one-way credentials and never leave the service layer.
type Account struct {
	ID             string    `json:"id"`
	FullName       string    `json:"full_name"`
	AccountNumber  string    `json:"account_number"`
	AccountType    string    `json:"account_type"`
	Phone          string    `json:"phone,omitempty"`
	Location       string    `json:"location,omitempty"`
	Balance        int64     `json:"balance"`
	DailyWithdrawn int64     `json:"daily_withdrawn"`
	LastLoginDate  string    `json:"last_login_date,omitempty"` // YYYY-MM-DD
	PasswordHash   string    `json:"-"`
	PinHash        string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// MaskedAccountNumber returns the account number with everything but the last four digits hidden.
func (a *Account) MaskedAccountNumber() string {
	if len(a.AccountNumber) < 4 {
		return "****0000"
	}
	return "****" + a.AccountNumber[len(a.AccountNumber)-4:]
}

// Ledger is the per-user view the engine mutates: the account plus its
// reverse-chronological transaction log.
type Ledger struct {
	Account Account
	Entries []LedgerEntry
}

// Prepend adds an entry at the front of the log.
func (l *Ledger) Prepend(e LedgerEntry) {
	l.Entries = append([]LedgerEntry{e}, l.Entries...)
}

// ============================================================
// Ledger entries
// ============================================================

// LedgerEntry is the immutable record of a committed monetary operation.
type LedgerEntry struct {
	ID            string        `json:"id"`
	Kind          OperationKind `json:"type"`
	Amount        int64         `json:"amount"`
	Fee           int64         `json:"fee"`
	Timestamp     time.Time     `json:"date"`
	BalanceAfter  int64         `json:"balance_after"`
	Status        string        `json:"status"`
	Location      string        `json:"location,omitempty"`
	RecipientID   string        `json:"recipient_account,omitempty"`
	RecipientName string        `json:"recipient_name,omitempty"`
	NoteBreakdown Breakdown     `json:"notes_breakdown,omitempty"`
}

// HistoryStats summarizes a transaction log.
type HistoryStats struct {
	Total     int           `json:"total"`
	ThisMonth int           `json:"this_month"`
	Recent    []LedgerEntry `json:"recent"`
}
