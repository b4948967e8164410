package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/cache"
	"github.com/boddenberg/atm-terminal-go/internal/infra/memstore"
	"github.com/boddenberg/atm-terminal-go/internal/infra/observability"
	"github.com/boddenberg/atm-terminal-go/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fixedClock is a settable clock.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *fixedClock { return &fixedClock{now: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Today() string { return c.Now().Format("2006-01-02") }

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var testNow = time.Date(2026, 10, 17, 10, 30, 0, 0, time.UTC)

// countingHasher records how many comparisons were made.
type countingHasher struct {
	inner   *service.BcryptHasher
	matches atomic.Int32
}

func newHasher() *countingHasher {
	return &countingHasher{inner: service.NewBcryptHasher(bcrypt.MinCost)}
}

func (h *countingHasher) Hash(secret string) (string, error) { return h.inner.Hash(secret) }

func (h *countingHasher) Matches(hash, secret string) bool {
	h.matches.Add(1)
	return h.inner.Matches(hash, secret)
}

// recordingNotifier captures enqueued entries.
type recordingNotifier struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
}

func (n *recordingNotifier) Enqueue(_ string, e domain.LedgerEntry) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, e)
	return true
}

func (n *recordingNotifier) Entries() []domain.LedgerEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.LedgerEntry(nil), n.entries...)
}

func defaultTerminal() domain.TerminalConfig {
	return domain.TerminalConfig{
		Location:            "Jaipur, Rajasthan",
		Inventory:           domain.Inventory{100: 500, 200: 300, 500: 200},
		DailyLimit:          20000,
		PerTransactionLimit: 10000,
	}
}

// harness wires a TerminalService over an in-memory store.
type harness struct {
	clock    *fixedClock
	hasher   *countingHasher
	store    *memstore.Store
	engine   *service.Engine
	notifier *recordingNotifier
	metrics  *observability.Metrics
	sessions *cache.InMemory[*service.Session]
	svc      *service.TerminalService
}

func newHarness(t *testing.T, term domain.TerminalConfig) *harness {
	t.Helper()
	h := &harness{
		clock:    newClock(testNow),
		hasher:   newHasher(),
		store:    memstore.New(),
		notifier: &recordingNotifier{},
		metrics:  observability.NewMetrics(),
	}
	h.engine = service.NewEngine(term, 0, h.clock, h.notifier, h.metrics)

	h.sessions = cache.New[*service.Session](time.Hour)
	t.Cleanup(h.sessions.Close)

	h.svc = service.NewTerminalService(h.engine, h.store, h.store, h.hasher, h.clock, h.sessions,
		"test-secret", 15*time.Minute, h.metrics, zap.NewNop())
	return h
}

// addAccount creates an account with password "password1" and the given PIN.
func (h *harness) addAccount(t *testing.T, acct domain.Account, pin string) {
	t.Helper()
	var err error
	acct.PasswordHash, err = h.hasher.Hash("password1")
	require.NoError(t, err)
	acct.PinHash, err = h.hasher.Hash(pin)
	require.NoError(t, err)
	require.NoError(t, h.store.CreateAccount(context.Background(), acct))
}

// login opens a session for id with PIN 1234.
func (h *harness) login(t *testing.T, id string) (*service.Session, *domain.LoginResponse) {
	t.Helper()
	resp, err := h.svc.Login(context.Background(), &domain.LoginRequest{Username: id, Password: "password1", Pin: "1234"})
	require.NoError(t, err)
	sess, err := h.svc.Authenticate(resp.AccessToken)
	require.NoError(t, err)
	return sess, resp
}

func (h *harness) account(t *testing.T, id string) *domain.Account {
	t.Helper()
	a, err := h.store.LoadAccount(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}
