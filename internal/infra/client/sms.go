package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/resilience"
	"github.com/boddenberg/atm-terminal-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// smsMessage is the JSON body posted to the SMS gateway webhook.
type smsMessage struct {
	To        string `json:"to"`
	Message   string `json:"message"`
	AccountID string `json:"account_id"`
	EntryID   string `json:"entry_id"`
}

// SMSClient delivers post-commit notifications to an SMS gateway webhook.
// It implements port.NotificationSink.
type SMSClient struct {
	httpClient *http.Client
	webhookURL string
	accounts   port.CredentialStore
	guard      *resilience.Guard
}

// NewSMSClient creates a new SMSClient. accounts resolves the recipient's phone number.
func NewSMSClient(httpClient *http.Client, webhookURL string, accounts port.CredentialStore, guard *resilience.Guard) *SMSClient {
	return &SMSClient{
		httpClient: httpClient,
		webhookURL: webhookURL,
		accounts:   accounts,
		guard:      guard,
	}
}

// Notify sends the entry's notification text to the account holder's phone
// with retry, circuit breaker, bulkhead and tracing.
func (c *SMSClient) Notify(ctx context.Context, accountID string, entry domain.LedgerEntry) error {
	ctx, span := tracer.Start(ctx, "SMSClient.Notify")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.String("entry.id", entry.ID),
	)

	acct, err := c.accounts.LoadAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if acct == nil {
		return &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	if acct.Phone == "" {
		return &domain.ErrValidation{Field: "phone", Message: "account has no phone number"}
	}

	body, err := json.Marshal(smsMessage{
		To:        acct.Phone,
		Message:   entry.NotificationText(),
		AccountID: accountID,
		EntryID:   entry.ID,
	})
	if err != nil {
		return err
	}

	err = c.guard.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", entry.ID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return resilience.Permanent(fmt.Errorf("sms gateway returned status %d", resp.StatusCode))
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &domain.ErrCircuitOpen{Service: "sms"}
	default:
		return &domain.ErrExternalService{Service: "sms", Err: err}
	}
}
