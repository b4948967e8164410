package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/observability"
	"github.com/boddenberg/atm-terminal-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var terminalTracer = otel.Tracer("service/terminal")

const (
	defaultAccountType = "Savings"
	accountNumberLen   = 10
	minPasswordLen     = 8
	tokenIssuer        = "atm-terminal"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)
	pinPattern      = regexp.MustCompile(`^[0-9]{4}$`)
)

// TerminalService handles registration, login and the registry of live sessions.
type TerminalService struct {
	engine     *Engine
	accounts   port.CredentialStore
	history    port.LedgerStore
	hasher     port.CredentialHasher
	clock      port.Clock
	sessions   port.Cache[*Session]
	jwtSecret  []byte
	sessionTTL time.Duration
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewTerminalService creates the terminal service. sessions should expire
// entries after sessionTTL of inactivity.
func NewTerminalService(
	engine *Engine,
	accounts port.CredentialStore,
	history port.LedgerStore,
	hasher port.CredentialHasher,
	clock port.Clock,
	sessions port.Cache[*Session],
	jwtSecret string,
	sessionTTL time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TerminalService {
	return &TerminalService{
		engine:     engine,
		accounts:   accounts,
		history:    history,
		hasher:     hasher,
		clock:      clock,
		sessions:   sessions,
		jwtSecret:  []byte(jwtSecret),
		sessionTTL: sessionTTL,
		metrics:    metrics,
		logger:     logger,
	}
}

// ============================================================
// Register: POST /v1/auth/register
// ============================================================

func (s *TerminalService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.RegisterResponse, error) {
	ctx, span := terminalTracer.Start(ctx, "TerminalService.Register")
	defer span.End()

	username := normalizeUsername(req.Username)
	if !usernamePattern.MatchString(username) {
		return nil, &domain.ErrValidation{Field: "username", Message: "must be 3-32 characters of a-z, 0-9 or _"}
	}
	if strings.TrimSpace(req.FullName) == "" {
		return nil, &domain.ErrValidation{Field: "full_name", Message: "is required"}
	}
	if len(req.Password) < minPasswordLen {
		return nil, &domain.ErrValidation{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	}
	if err := validatePin("pin", req.Pin, req.ConfirmPin); err != nil {
		return nil, err
	}

	existing, err := s.accounts.LoadAccount(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check existing account: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "username already registered"}
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	pinHash, err := s.hasher.Hash(req.Pin)
	if err != nil {
		return nil, err
	}
	number, err := generateAccountNumber()
	if err != nil {
		return nil, fmt.Errorf("generate account number: %w", err)
	}

	acct := domain.Account{
		ID:            username,
		FullName:      strings.TrimSpace(req.FullName),
		AccountNumber: number,
		AccountType:   defaultAccountType,
		Phone:         req.Phone,
		Location:      req.Location,
		PasswordHash:  passwordHash,
		PinHash:       pinHash,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.accounts.CreateAccount(ctx, acct); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info("account registered",
		zap.String("account_id", acct.ID),
		zap.String("account_number", acct.MaskedAccountNumber()),
	)
	return &domain.RegisterResponse{
		AccountID:     acct.ID,
		AccountNumber: acct.AccountNumber,
		AccountType:   acct.AccountType,
		Message:       fmt.Sprintf("Welcome %s! Your account number is %s.", acct.FullName, acct.AccountNumber),
	}, nil
}

// ============================================================
// Login / Logout
// ============================================================

// Login checks username, password and PIN, resets the daily withdrawal
// counter on the first login of a new day, and opens a session. Any session
// already open for the account is closed.
func (s *TerminalService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := terminalTracer.Start(ctx, "TerminalService.Login")
	defer span.End()

	username := normalizeUsername(req.Username)
	span.SetAttributes(attribute.String("account_id", username))

	acct, err := s.accounts.LoadAccount(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct == nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid username, password or PIN"}
	}

	passOK := s.hasher.Matches(acct.PasswordHash, req.Password)
	pinOK := s.hasher.Matches(acct.PinHash, req.Pin)
	if !passOK || !pinOK {
		s.logger.Warn("login: invalid credentials", zap.String("account_id", acct.ID))
		return nil, &domain.ErrUnauthorized{Message: "invalid username, password or PIN"}
	}

	// The previous session saves its ledger on close, so reload after it.
	if prev, ok := s.sessions.Get(acct.ID); ok {
		prev.Close(ctx)
		s.logger.Info("previous session replaced", zap.String("account_id", acct.ID), zap.String("session_id", prev.ID()))
		acct, err = s.accounts.LoadAccount(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("reload account: %w", err)
		}
		if acct == nil {
			return nil, &domain.ErrUnauthorized{Message: "invalid username, password or PIN"}
		}
	}

	if today := s.clock.Today(); acct.LastLoginDate != today {
		acct.DailyWithdrawn = 0
		acct.LastLoginDate = today
		if err := s.accounts.SaveAccount(ctx, *acct); err != nil {
			return nil, fmt.Errorf("save account: %w", err)
		}
	}

	entries, err := s.history.LoadHistory(ctx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	sess := NewSession(uuid.NewString(), domain.Ledger{Account: *acct, Entries: entries}, s.sessionDeps())
	token, err := s.signSessionToken(acct.ID, sess.ID())
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	s.sessions.Set(acct.ID, sess)

	s.logger.Info("account logged in",
		zap.String("account_id", acct.ID),
		zap.String("session_id", sess.ID()),
	)
	return &domain.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int(s.sessionTTL.Seconds()),
		AccountID:   acct.ID,
		FullName:    acct.FullName,
		SessionID:   sess.ID(),
	}, nil
}

// Logout closes sess and removes it from the registry.
func (s *TerminalService) Logout(ctx context.Context, sess *Session) {
	ctx, span := terminalTracer.Start(ctx, "TerminalService.Logout")
	defer span.End()

	accountID := sess.AccountID()
	sess.Close(ctx)
	if cur, ok := s.sessions.Get(accountID); ok && cur == sess {
		s.sessions.Delete(accountID)
	}
	s.logger.Info("account logged out", zap.String("account_id", accountID), zap.String("session_id", sess.ID()))
}

func (s *TerminalService) sessionDeps() SessionDeps {
	return SessionDeps{
		Engine:   s.engine,
		Accounts: s.accounts,
		History:  s.history,
		Hasher:   s.hasher,
		Clock:    s.clock,
		Metrics:  s.metrics,
		Logger:   s.logger,
	}
}

// ============================================================
// Session tokens: used by middleware
// ============================================================

// SessionClaims are the claims carried by a session bearer token.
// Subject is the account ID.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Authenticate resolves a bearer token to its live session. A token whose
// session was replaced, logged out or expired is rejected.
func (s *TerminalService) Authenticate(tokenString string) (*Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	sess, ok := s.sessions.Get(claims.Subject)
	if !ok || sess.ID() != claims.SessionID {
		return nil, &domain.ErrUnauthorized{Message: "session expired or replaced"}
	}
	if sess.Closed() {
		// Locked out sessions stay in the cache until their token is next presented.
		s.sessions.Delete(claims.Subject)
		return nil, &domain.ErrUnauthorized{Message: "session expired or replaced"}
	}
	// Refresh the idle timeout.
	s.sessions.Set(claims.Subject, sess)
	return sess, nil
}

func (s *TerminalService) signSessionToken(accountID, sessionID string) (string, error) {
	now := s.clock.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
			Issuer:    tokenIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// ============================================================
// Terminal info
// ============================================================

// Terminal returns the public view of the terminal.
func (s *TerminalService) Terminal() domain.TerminalView {
	t := s.engine.Terminal()
	return domain.TerminalView{
		Location:         t.Location,
		DailyLimit:       t.DailyLimit,
		TransactionLimit: t.PerTransactionLimit,
		Inventory:        t.Inventory,
		CashValue:        t.Inventory.Value(),
	}
}

// Metrics returns the terminal counters snapshot.
func (s *TerminalService) Metrics() *domain.TerminalMetrics {
	return s.metrics.Snapshot(s.engine.InventorySnapshot().Denominations())
}

// ============================================================
// Internal helpers
// ============================================================

func normalizeUsername(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

func validatePin(field, pin, confirm string) error {
	if !pinPattern.MatchString(pin) {
		return &domain.ErrValidation{Field: field, Message: "PIN must be exactly 4 digits"}
	}
	if pin != confirm {
		return &domain.ErrValidation{Field: "confirm_pin", Message: "PIN values do not match"}
	}
	return nil
}

func generateAccountNumber() (string, error) {
	var b strings.Builder
	for i := 0; i < accountNumberLen; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
