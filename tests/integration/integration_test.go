package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/handler"
	"github.com/boddenberg/atm-terminal-go/internal/infra/cache"
	"github.com/boddenberg/atm-terminal-go/internal/infra/client"
	"github.com/boddenberg/atm-terminal-go/internal/infra/memstore"
	"github.com/boddenberg/atm-terminal-go/internal/infra/observability"
	"github.com/boddenberg/atm-terminal-go/internal/infra/resilience"
	"github.com/boddenberg/atm-terminal-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type smsGateway struct {
	mu       sync.Mutex
	status   int
	messages []map[string]string
}

func (g *smsGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg map[string]string
	json.NewDecoder(r.Body).Decode(&msg)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, msg)
	w.WriteHeader(g.status)
}

func (g *smsGateway) received() []map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]map[string]string(nil), g.messages...)
}

type stack struct {
	router     http.Handler
	dispatcher *service.Dispatcher
	metrics    *observability.Metrics
}

// newStack wires the full terminal over the in-memory store with demo
// accounts and an SMS gateway at gatewayURL.
func newStack(t *testing.T, gatewayURL string) *stack {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	clock := service.SystemClock{}
	hasher := service.NewBcryptHasher(bcrypt.MinCost)

	store := memstore.New()
	if _, err := memstore.Seed(context.Background(), store, hasher, memstore.DemoAccounts(), clock.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}
	httpClient := &http.Client{Timeout: 5 * time.Second}
	sms := client.NewSMSClient(httpClient, gatewayURL, store, resilience.NewGuard("test-sms", cfg, logger))

	dispatcher := service.NewDispatcher(sms, 16, 1, 5*time.Second, metrics, logger)
	dispatcher.Start(context.Background())

	terminal := domain.TerminalConfig{
		Location:            "Jaipur, Rajasthan",
		Inventory:           domain.Inventory{100: 1000, 200: 0, 500: 0},
		DailyLimit:          20000,
		PerTransactionLimit: 10000,
	}
	engine := service.NewEngine(terminal, 10*time.Millisecond, clock, dispatcher, metrics)

	sessions := cache.New[*service.Session](15 * time.Minute)
	t.Cleanup(sessions.Close)

	svc := service.NewTerminalService(engine, store, store, hasher, clock, sessions, "integration-secret", 15*time.Minute, metrics, logger)
	return &stack{
		router:     handler.NewRouter(svc, metrics, logger),
		dispatcher: dispatcher,
		metrics:    metrics,
	}
}

func (s *stack) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *stack) withdraw(t *testing.T, amount int64) (string, domain.Outcome) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/auth/login", "", domain.LoginRequest{Username: "john_doe", Password: "demo123", Pin: "1234"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	var login domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&login); err != nil {
		t.Fatalf("failed to decode login: %v", err)
	}

	rec = s.do(t, http.MethodPost, "/v1/operations", login.AccessToken, domain.OperationRequest{Kind: "withdrawal", Amount: amount})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("stage: expected 202, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/v1/operations/pin", login.AccessToken, domain.PinRequest{Pin: "1234"})
	if rec.Code != http.StatusOK {
		t.Fatalf("pin: expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	var out domain.Outcome
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode outcome: %v", err)
	}
	return login.AccessToken, out
}

// TestIntegration_WithdrawalNotifiesBySMS runs login, stage, PIN and commit
// through the router and checks the SMS gateway receives the notification.
func TestIntegration_WithdrawalNotifiesBySMS(t *testing.T) {
	gateway := &smsGateway{status: http.StatusAccepted}
	srv := httptest.NewServer(gateway)
	defer srv.Close()

	s := newStack(t, srv.URL)
	_, out := s.withdraw(t, 2500)

	if out.Entry == nil {
		t.Fatal("expected ledger entry in outcome")
	}
	if out.Entry.BalanceAfter != 22490 {
		t.Errorf("expected balance 22490, got %d", out.Entry.BalanceAfter)
	}
	if out.Entry.NoteBreakdown[100] != 25 {
		t.Errorf("expected 25 notes of 100, got %v", out.Entry.NoteBreakdown)
	}

	if err := s.dispatcher.Close(); err != nil {
		t.Fatalf("dispatcher close: %v", err)
	}

	msgs := gateway.received()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 sms, got %d", len(msgs))
	}
	if msgs[0]["to"] != "+91-9876543210" {
		t.Errorf("unexpected recipient %q", msgs[0]["to"])
	}
	if want := "WITHDRAWAL of ₹2,500.00 completed. Balance: ₹22,490.00."; msgs[0]["message"] != want {
		t.Errorf("expected message %q, got %q", want, msgs[0]["message"])
	}
	if msgs[0]["entry_id"] != out.Entry.ID {
		t.Errorf("expected entry_id %q, got %q", out.Entry.ID, msgs[0]["entry_id"])
	}

	snap := s.metrics.Snapshot([]domain.Denomination{100})
	if snap.NotificationsSent != 1 {
		t.Errorf("expected 1 notification sent, got %d", snap.NotificationsSent)
	}
	if snap.NotesDispensed["100"] != 25 {
		t.Errorf("expected 25 notes dispensed, got %d", snap.NotesDispensed["100"])
	}
}

// TestIntegration_GatewayDownDoesNotAffectCommit checks a failing SMS gateway
// only shows up in the notification metrics.
func TestIntegration_GatewayDownDoesNotAffectCommit(t *testing.T) {
	gateway := &smsGateway{status: http.StatusInternalServerError}
	srv := httptest.NewServer(gateway)
	defer srv.Close()

	s := newStack(t, srv.URL)
	token, out := s.withdraw(t, 1000)
	if out.Entry == nil || out.Entry.BalanceAfter != 24000 {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	if err := s.dispatcher.Close(); err != nil {
		t.Fatalf("dispatcher close: %v", err)
	}
	if got := len(gateway.received()); got != 2 {
		t.Errorf("expected 2 delivery attempts, got %d", got)
	}
	if snap := s.metrics.Snapshot(nil); snap.NotificationsFailed != 1 || snap.OperationsCommitted != 1 {
		t.Errorf("unexpected metrics: %+v", snap)
	}

	rec := s.do(t, http.MethodGet, "/v1/session", token, nil)
	var view domain.SessionView
	json.NewDecoder(rec.Body).Decode(&view)
	if view.DailyWithdrawn != 1000 {
		t.Errorf("expected daily withdrawn 1000, got %d", view.DailyWithdrawn)
	}
}
