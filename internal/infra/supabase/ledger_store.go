package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Ledger entries: port.LedgerStore via PostgREST
// ============================================================

// entryRow maps the atm_ledger_entries columns. notes_breakdown is jsonb.
type entryRow struct {
	ID            string           `json:"id"`
	AccountID     string           `json:"account_id"`
	Type          string           `json:"type"`
	Amount        int64            `json:"amount"`
	Fee           int64            `json:"fee"`
	Date          time.Time        `json:"date"`
	BalanceAfter  int64            `json:"balance_after"`
	Status        string           `json:"status"`
	Location      string           `json:"location"`
	RecipientID   *string          `json:"recipient_account"`
	RecipientName *string          `json:"recipient_name"`
	NoteBreakdown domain.Breakdown `json:"notes_breakdown"`
}

func toEntryRow(accountID string, e domain.LedgerEntry) entryRow {
	return entryRow{
		ID:            e.ID,
		AccountID:     accountID,
		Type:          string(e.Kind),
		Amount:        e.Amount,
		Fee:           e.Fee,
		Date:          e.Timestamp,
		BalanceAfter:  e.BalanceAfter,
		Status:        e.Status,
		Location:      e.Location,
		RecipientID:   optional(e.RecipientID),
		RecipientName: optional(e.RecipientName),
		NoteBreakdown: e.NoteBreakdown,
	}
}

func (r entryRow) toDomain() domain.LedgerEntry {
	e := domain.LedgerEntry{
		ID:            r.ID,
		Kind:          domain.OperationKind(r.Type),
		Amount:        r.Amount,
		Fee:           r.Fee,
		Timestamp:     r.Date,
		BalanceAfter:  r.BalanceAfter,
		Status:        r.Status,
		Location:      r.Location,
		NoteBreakdown: r.NoteBreakdown,
	}
	if r.RecipientID != nil {
		e.RecipientID = *r.RecipientID
	}
	if r.RecipientName != nil {
		e.RecipientName = *r.RecipientName
	}
	return e
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// LoadHistory returns the account's entries, newest first. UUIDv7 IDs break
// ties between entries with the same timestamp.
func (c *Client) LoadHistory(ctx context.Context, accountID string) ([]domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.LoadHistory")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var entries []domain.LedgerEntry
	err := c.call(ctx, "supabase/ledger", func() error {
		path := fmt.Sprintf("%s?account_id=eq.%s&order=date.desc,id.desc", entriesTable, url.QueryEscape(accountID))
		body, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
		if err != nil {
			return err
		}

		var rows []entryRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return resilience.Permanent(fmt.Errorf("decode ledger entries: %w", err))
		}
		entries = make([]domain.LedgerEntry, 0, len(rows))
		for _, r := range rows {
			entries = append(entries, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SaveHistory upserts every entry. Entries are immutable, so existing rows
// are left as they are.
func (c *Client) SaveHistory(ctx context.Context, accountID string, entries []domain.LedgerEntry) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveHistory")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.Int("entries", len(entries)),
	)

	if len(entries) == 0 {
		return nil
	}
	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, toEntryRow(accountID, e))
	}

	return c.call(ctx, "supabase/ledger", func() error {
		path := entriesTable + "?on_conflict=id"
		_, err := c.doRequest(ctx, http.MethodPost, path, rows, "resolution=ignore-duplicates,return=minimal")
		return err
	})
}
