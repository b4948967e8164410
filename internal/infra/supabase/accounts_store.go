package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Accounts: port.CredentialStore via PostgREST
// ============================================================

// accountRow maps the atm_accounts columns, credentials included.
type accountRow struct {
	ID             string    `json:"id"`
	FullName       string    `json:"full_name"`
	AccountNumber  string    `json:"account_number"`
	AccountType    string    `json:"account_type"`
	Phone          string    `json:"phone"`
	Location       string    `json:"location"`
	Balance        int64     `json:"balance"`
	DailyWithdrawn int64     `json:"daily_withdrawn"`
	LastLoginDate  *string   `json:"last_login_date"`
	PasswordHash   string    `json:"password_hash"`
	PinHash        string    `json:"pin_hash"`
	CreatedAt      time.Time `json:"created_at"`
}

func toAccountRow(a domain.Account) accountRow {
	r := accountRow{
		ID:             a.ID,
		FullName:       a.FullName,
		AccountNumber:  a.AccountNumber,
		AccountType:    a.AccountType,
		Phone:          a.Phone,
		Location:       a.Location,
		Balance:        a.Balance,
		DailyWithdrawn: a.DailyWithdrawn,
		PasswordHash:   a.PasswordHash,
		PinHash:        a.PinHash,
		CreatedAt:      a.CreatedAt,
	}
	if a.LastLoginDate != "" {
		d := a.LastLoginDate
		r.LastLoginDate = &d
	}
	return r
}

func (r accountRow) toDomain() domain.Account {
	a := domain.Account{
		ID:             r.ID,
		FullName:       r.FullName,
		AccountNumber:  r.AccountNumber,
		AccountType:    r.AccountType,
		Phone:          r.Phone,
		Location:       r.Location,
		Balance:        r.Balance,
		DailyWithdrawn: r.DailyWithdrawn,
		PasswordHash:   r.PasswordHash,
		PinHash:        r.PinHash,
		CreatedAt:      r.CreatedAt,
	}
	if r.LastLoginDate != nil {
		a.LastLoginDate = *r.LastLoginDate
	}
	return a
}

func (c *Client) LoadAccount(ctx context.Context, id string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.LoadAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	var acct *domain.Account
	err := c.call(ctx, "supabase/accounts", func() error {
		path := fmt.Sprintf("%s?id=eq.%s&limit=1", accountsTable, url.QueryEscape(id))
		body, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
		if err != nil {
			return err
		}

		var rows []accountRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return resilience.Permanent(fmt.Errorf("decode account: %w", err))
		}
		if len(rows) == 0 {
			acct = nil
			return nil
		}
		a := rows[0].toDomain()
		acct = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (c *Client) SaveAccount(ctx context.Context, account domain.Account) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", account.ID))

	return c.call(ctx, "supabase/accounts", func() error {
		path := fmt.Sprintf("%s?id=eq.%s", accountsTable, url.QueryEscape(account.ID))
		body, err := c.doRequest(ctx, http.MethodPatch, path, toAccountRow(account), "return=representation")
		if err != nil {
			return err
		}
		var rows []accountRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return resilience.Permanent(fmt.Errorf("decode account: %w", err))
		}
		if len(rows) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "account", ID: account.ID})
		}
		return nil
	})
}

func (c *Client) CreateAccount(ctx context.Context, account domain.Account) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", account.ID))

	return c.call(ctx, "supabase/accounts", func() error {
		_, err := c.doRequest(ctx, http.MethodPost, accountsTable, toAccountRow(account), "return=minimal")
		var serr *statusError
		if errors.As(err, &serr) && serr.Status == http.StatusConflict {
			return resilience.Permanent(&domain.ErrConflict{Message: "username already registered"})
		}
		return err
	})
}
