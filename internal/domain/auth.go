package domain

import "time"

// ============================================================
// Auth: Request / Response types
// ============================================================

// RegisterRequest is the body for POST /v1/auth/register.
type RegisterRequest struct {
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Location   string `json:"location"`
	Password   string `json:"password"`
	Pin        string `json:"pin"`
	ConfirmPin string `json:"confirm_pin"`
}

// RegisterResponse is the body for 201 from POST /v1/auth/register.
type RegisterResponse struct {
	AccountID     string `json:"account_id"`
	AccountNumber string `json:"account_number"`
	AccountType   string `json:"account_type"`
	Message       string `json:"message"`
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Pin      string `json:"pin"`
}

// LoginResponse is the body for 200 from POST /v1/auth/login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	AccountID   string `json:"account_id"`
	FullName    string `json:"full_name"`
	SessionID   string `json:"session_id"`
}

// ChangePinRequest is the body for PUT /v1/auth/pin.
type ChangePinRequest struct {
	CurrentPin string `json:"current_pin"`
	NewPin     string `json:"new_pin"`
	ConfirmPin string `json:"confirm_pin"`
}

// SessionView is the dashboard returned by GET /v1/session.
type SessionView struct {
	SessionID           string            `json:"session_id"`
	AccountID           string            `json:"account_id"`
	FullName            string            `json:"full_name"`
	MaskedAccountNumber string            `json:"account_number"`
	AccountType         string            `json:"account_type"`
	DailyWithdrawn      int64             `json:"daily_withdrawn"`
	DailyRemaining      int64             `json:"daily_remaining"`
	DailyLimit          int64             `json:"daily_limit"`
	Pending             *PendingOperation `json:"pending,omitempty"`
	AttemptsRemaining   int               `json:"attempts_remaining"`
	HistoryUnlocked     bool              `json:"history_unlocked"`
	OpenedAt            time.Time         `json:"opened_at"`
}

// TerminalView is returned by GET /v1/terminal.
type TerminalView struct {
	Location         string    `json:"location"`
	DailyLimit       int64     `json:"daily_limit"`
	TransactionLimit int64     `json:"transaction_limit"`
	Inventory        Inventory `json:"inventory"`
	CashValue        int64     `json:"cash_value"`
}
