// Package supabase stores accounts and transaction logs in Supabase through
// its PostgREST API. It implements port.CredentialStore and port.LedgerStore.
package supabase

import (
	"context"
	"errors"
	"net/http"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

const (
	accountsTable = "atm_accounts"
	entriesTable  = "atm_ledger_entries"
)

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	guard          *resilience.Guard
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, guard *resilience.Guard, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		guard:          guard,
		logger:         logger,
	}
}

// call runs fn through the guard and maps failures to domain errors.
// Domain errors raised inside fn pass through unchanged.
func (c *Client) call(ctx context.Context, service string, fn func() error) error {
	err := c.guard.Do(ctx, fn)
	if err == nil {
		return nil
	}

	var conflict *domain.ErrConflict
	var notFound *domain.ErrNotFound
	switch {
	case errors.As(err, &conflict):
		return conflict
	case errors.As(err, &notFound):
		return notFound
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &domain.ErrCircuitOpen{Service: service}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}
