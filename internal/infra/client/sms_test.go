package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/client"
	"github.com/boddenberg/atm-terminal-go/internal/infra/resilience"

	"go.uber.org/zap"
)

type stubAccounts struct {
	accounts map[string]domain.Account
}

func (s *stubAccounts) LoadAccount(_ context.Context, id string) (*domain.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *stubAccounts) SaveAccount(context.Context, domain.Account) error   { return nil }
func (s *stubAccounts) CreateAccount(context.Context, domain.Account) error { return nil }

func newAccounts() *stubAccounts {
	return &stubAccounts{accounts: map[string]domain.Account{
		"john_doe": {ID: "john_doe", Phone: "+91-9876543210"},
		"nophone":  {ID: "nophone"},
	}}
}

func sampleEntry() domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:           "entry-1",
		Kind:         domain.KindWithdrawal,
		Amount:       2500,
		Fee:          10,
		BalanceAfter: 22490,
		Timestamp:    time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC),
	}
}

func newGuard() *resilience.Guard {
	return resilience.NewGuard("sms", resilience.Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxConcurrency: 2,
	}, zap.NewNop())
}

func TestSMSClient_Notify_PostsMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Idempotency-Key") != "entry-1" {
			t.Errorf("expected idempotency key entry-1, got %q", r.Header.Get("Idempotency-Key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := client.NewSMSClient(srv.Client(), srv.URL, newAccounts(), newGuard())
	if err := c.Notify(context.Background(), "john_doe", sampleEntry()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got["to"] != "+91-9876543210" {
		t.Errorf("expected phone in 'to', got %q", got["to"])
	}
	want := "WITHDRAWAL of ₹2,500.00 completed. Balance: ₹22,490.00."
	if got["message"] != want {
		t.Errorf("expected message %q, got %q", want, got["message"])
	}
}

func TestSMSClient_Notify_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := client.NewSMSClient(srv.Client(), srv.URL, newAccounts(), newGuard())
	if err := c.Notify(context.Background(), "john_doe", sampleEntry()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestSMSClient_Notify_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := client.NewSMSClient(srv.Client(), srv.URL, newAccounts(), newGuard())
	err := c.Notify(context.Background(), "john_doe", sampleEntry())

	var extErr *domain.ErrExternalService
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestSMSClient_Notify_NoPhone(t *testing.T) {
	c := client.NewSMSClient(http.DefaultClient, "http://unused.invalid", newAccounts(), newGuard())

	err := c.Notify(context.Background(), "nophone", sampleEntry())

	var vErr *domain.ErrValidation
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
