package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/observability"
	"github.com/boddenberg/atm-terminal-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var sessionTracer = otel.Tracer("service/session")

const recentEntries = 5

// SessionDeps are the collaborators a Session works with.
type SessionDeps struct {
	Engine   *Engine
	Accounts port.CredentialStore
	History  port.LedgerStore
	Hasher   port.CredentialHasher
	Clock    port.Clock
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// Session is one logged-in user at the terminal. It owns the user's ledger
// and PIN challenge and serializes its own calls.
type Session struct {
	mu              sync.Mutex
	id              string
	openedAt        time.Time
	ledger          domain.Ledger
	challenge       PinChallenge
	historyUnlocked bool
	closed          bool

	deps SessionDeps
}

// NewSession opens a session over ledger.
func NewSession(id string, ledger domain.Ledger, deps SessionDeps) *Session {
	return &Session{
		id:       id,
		openedAt: deps.Clock.Now(),
		ledger:   ledger,
		deps:     deps,
	}
}

// ID returns the session identifier carried in the bearer token.
func (s *Session) ID() string { return s.id }

// AccountID returns the logged-in account's ID.
func (s *Session) AccountID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Account.ID
}

// Closed reports whether the session was locked out or logged out.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ============================================================
// Stage / SubmitPin / Cancel
// ============================================================

// Stage prepares req and opens a PIN challenge for it.
func (s *Session) Stage(ctx context.Context, req *domain.OperationRequest) (*domain.StagedResponse, error) {
	_, span := sessionTracer.Start(ctx, "Session.Stage")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, &domain.ErrSessionClosed{}
	}
	op, err := s.deps.Engine.Prepare(req)
	if err != nil {
		return nil, err
	}
	if err := s.challenge.Stage(*op); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("kind", string(op.Kind)), attribute.Int64("amount", op.Amount))
	s.deps.Logger.Info("operation staged",
		zap.String("account_id", s.ledger.Account.ID),
		zap.String("kind", string(op.Kind)),
		zap.Int64("amount", op.Amount),
		zap.Int64("fee", op.Fee),
	)
	return &domain.StagedResponse{
		Pending:           *s.challenge.Pending(),
		AttemptsRemaining: s.challenge.AttemptsRemaining(),
	}, nil
}

// SubmitPin verifies pin against the staged operation and, on a match,
// commits it through the engine. The third wrong PIN closes the session.
func (s *Session) SubmitPin(ctx context.Context, pin string) (*domain.Outcome, error) {
	ctx, span := sessionTracer.Start(ctx, "Session.SubmitPin")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, &domain.ErrSessionClosed{}
	}

	acct := &s.ledger.Account
	op, err := s.challenge.Submit(func() bool {
		return s.deps.Hasher.Matches(acct.PinHash, pin)
	})
	if err != nil {
		s.recordPinFailure(err)
		return nil, err
	}
	s.deps.Metrics.IncrPinAttempt("match")

	outcome, err := s.deps.Engine.Commit(ctx, op, &s.ledger)
	if err != nil {
		s.deps.Logger.Info("operation rejected",
			zap.String("account_id", acct.ID),
			zap.String("kind", string(op.Kind)),
			zap.Int64("amount", op.Amount),
			zap.Error(err),
		)
		return nil, err
	}

	switch {
	case op.Kind == domain.KindHistoryAccess:
		s.historyUnlocked = true
	case op.Kind.IsMonetary():
		s.persist(ctx)
	}

	s.deps.Logger.Info("operation committed",
		zap.String("account_id", acct.ID),
		zap.String("kind", string(op.Kind)),
		zap.Int64("amount", op.Amount),
		zap.Int64("balance", acct.Balance),
	)
	return outcome, nil
}

func (s *Session) recordPinFailure(err error) {
	var mismatch *domain.ErrPinMismatch
	var locked *domain.ErrLockedOut
	switch {
	case errors.As(err, &mismatch):
		s.deps.Metrics.IncrPinAttempt("mismatch")
		s.deps.Logger.Warn("pin mismatch",
			zap.String("account_id", s.ledger.Account.ID),
			zap.Int("attempts_remaining", mismatch.AttemptsRemaining),
		)
	case errors.As(err, &locked):
		s.closed = true
		s.deps.Metrics.IncrPinAttempt("mismatch")
		s.deps.Metrics.IncrLockout()
		s.deps.Logger.Warn("session locked out",
			zap.String("account_id", s.ledger.Account.ID),
			zap.String("session_id", s.id),
		)
	}
}

// Cancel discards the staged operation. Nothing is charged or recorded.
func (s *Session) Cancel(ctx context.Context) error {
	_, span := sessionTracer.Start(ctx, "Session.Cancel")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &domain.ErrSessionClosed{}
	}
	pending := s.challenge.Pending()
	if err := s.challenge.Cancel(); err != nil {
		return err
	}
	s.deps.Metrics.IncrOperation(pending.Kind, observability.ResultCancelled)
	s.deps.Logger.Info("operation cancelled",
		zap.String("account_id", s.ledger.Account.ID),
		zap.String("kind", string(pending.Kind)),
	)
	return nil
}

// ============================================================
// History
// ============================================================

// FilterHistory returns ledger entries of kind, newest first. An empty kind
// or "all" returns everything. History must first be unlocked by a
// history_access operation in this session.
func (s *Session) FilterHistory(kind string) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.historyAllowed(); err != nil {
		return nil, err
	}

	out := make([]domain.LedgerEntry, 0, len(s.ledger.Entries))
	if kind == "" || kind == "all" {
		return append(out, s.ledger.Entries...), nil
	}
	k, ok := domain.ParseOperationKind(kind)
	if !ok || !k.IsMonetary() {
		return nil, &domain.ErrValidation{Field: "type", Message: "must be all, withdrawal, deposit or transfer"}
	}
	for _, e := range s.ledger.Entries {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out, nil
}

// HistoryStats summarizes the ledger: total entries, entries in the current
// calendar month and the most recent few.
func (s *Session) HistoryStats() (*domain.HistoryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.historyAllowed(); err != nil {
		return nil, err
	}

	now := s.deps.Clock.Now()
	stats := &domain.HistoryStats{Total: len(s.ledger.Entries)}
	for _, e := range s.ledger.Entries {
		ts := e.Timestamp.In(now.Location())
		if ts.Year() == now.Year() && ts.Month() == now.Month() {
			stats.ThisMonth++
		}
	}
	n := min(recentEntries, len(s.ledger.Entries))
	stats.Recent = append([]domain.LedgerEntry{}, s.ledger.Entries[:n]...)
	return stats, nil
}

func (s *Session) historyAllowed() error {
	if s.closed {
		return &domain.ErrSessionClosed{}
	}
	if !s.historyUnlocked {
		return &domain.ErrForbidden{Action: "view history before PIN verification"}
	}
	return nil
}

// ============================================================
// Dashboard, PIN change & close
// ============================================================

// View returns the dashboard for this session.
func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	term := s.deps.Engine.Terminal()
	acct := s.ledger.Account
	remaining := term.DailyLimit - acct.DailyWithdrawn
	if remaining < 0 {
		remaining = 0
	}
	return domain.SessionView{
		SessionID:           s.id,
		AccountID:           acct.ID,
		FullName:            acct.FullName,
		MaskedAccountNumber: acct.MaskedAccountNumber(),
		AccountType:         acct.AccountType,
		DailyWithdrawn:      acct.DailyWithdrawn,
		DailyRemaining:      remaining,
		DailyLimit:          term.DailyLimit,
		Pending:             s.challenge.Pending(),
		AttemptsRemaining:   s.challenge.AttemptsRemaining(),
		HistoryUnlocked:     s.historyUnlocked,
		OpenedAt:            s.openedAt,
	}
}

// ChangePin replaces the account PIN after checking the current one.
func (s *Session) ChangePin(ctx context.Context, req *domain.ChangePinRequest) error {
	ctx, span := sessionTracer.Start(ctx, "Session.ChangePin")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &domain.ErrSessionClosed{}
	}
	if !s.deps.Hasher.Matches(s.ledger.Account.PinHash, req.CurrentPin) {
		s.deps.Logger.Warn("pin change: wrong current pin", zap.String("account_id", s.ledger.Account.ID))
		return &domain.ErrUnauthorized{Message: "current PIN is incorrect"}
	}
	if err := validatePin("new_pin", req.NewPin, req.ConfirmPin); err != nil {
		return err
	}

	hash, err := s.deps.Hasher.Hash(req.NewPin)
	if err != nil {
		return err
	}
	updated := s.ledger.Account
	updated.PinHash = hash
	if err := s.deps.Accounts.SaveAccount(ctx, updated); err != nil {
		return err
	}
	s.ledger.Account = updated

	s.deps.Logger.Info("pin changed", zap.String("account_id", updated.ID))
	return nil
}

// Close ends the session, discarding any staged operation, and saves the ledger.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.challenge.reset()
	s.persist(ctx)
}

// persist saves the account and its history. The in-memory ledger stays
// authoritative for the session, so failures are logged and not returned.
func (s *Session) persist(ctx context.Context) {
	acct := s.ledger.Account
	if err := s.deps.Accounts.SaveAccount(ctx, acct); err != nil {
		s.deps.Logger.Error("save account failed", zap.String("account_id", acct.ID), zap.Error(err))
	}
	if err := s.deps.History.SaveHistory(ctx, acct.ID, s.ledger.Entries); err != nil {
		s.deps.Logger.Error("save history failed", zap.String("account_id", acct.ID), zap.Error(err))
	}
}
