// Package service holds the terminal's business logic: operation staging,
// PIN challenges, validation and the execution engine, sessions and
// notification dispatch.
package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/observability"
	"github.com/boddenberg/atm-terminal-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var engineTracer = otel.Tracer("service/engine")

const entryStatusCompleted = "completed"

// Engine validates and applies verified operations against an account ledger
// and the terminal's cash inventory. The terminal state is shared by every
// session; mu serializes all reads and writes of it.
type Engine struct {
	mu       sync.Mutex
	terminal domain.TerminalConfig

	delay    time.Duration
	clock    port.Clock
	notifier Notifier
	metrics  *observability.Metrics
	newID    func() string
}

// NewEngine creates an engine owning a copy of terminal. notifier may be nil.
func NewEngine(terminal domain.TerminalConfig, delay time.Duration, clock port.Clock, notifier Notifier, metrics *observability.Metrics) *Engine {
	e := &Engine{
		terminal: terminal.Clone(),
		delay:    delay,
		clock:    clock,
		notifier: notifier,
		metrics:  metrics,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	metrics.SetInventory(e.terminal.Inventory)
	return e
}

// Terminal returns a consistent snapshot of the terminal configuration.
func (e *Engine) Terminal() domain.TerminalConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminal.Clone()
}

// InventorySnapshot returns the current note counts.
func (e *Engine) InventorySnapshot() domain.Inventory {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminal.Inventory.Clone()
}

// ============================================================
// Prepare: turns a request into a PendingOperation
// ============================================================

// Prepare checks the request's shape and builds the operation to stage:
// kind, amount, fee and, for withdrawals, the note breakdown. Balance and
// limits are not checked here; Commit does that.
func (e *Engine) Prepare(req *domain.OperationRequest) (*domain.PendingOperation, error) {
	kind, ok := domain.ParseOperationKind(req.Kind)
	if !ok {
		return nil, &domain.ErrValidation{Field: "type", Message: "unknown operation type"}
	}

	op := &domain.PendingOperation{Kind: kind}
	switch kind {
	case domain.KindWithdrawal:
		if err := e.prepareWithdrawal(req, op); err != nil {
			return nil, err
		}
	case domain.KindDeposit:
		if req.Amount <= 0 {
			return nil, &domain.ErrInvalidAmount{Amount: req.Amount, Reason: "must be positive"}
		}
		op.Amount = req.Amount
	case domain.KindTransfer:
		if req.Amount <= 0 {
			return nil, &domain.ErrInvalidAmount{Amount: req.Amount, Reason: "must be positive"}
		}
		if req.RecipientID == "" {
			return nil, &domain.ErrValidation{Field: "recipient_account", Message: "recipient account is required"}
		}
		op.Amount = req.Amount
		op.RecipientID = req.RecipientID
		op.RecipientName = req.RecipientName
		if op.RecipientName == "" {
			op.RecipientName = "Unknown"
		}
	}

	op.Fee = FeeFor(op.Kind, op.Amount)
	return op, nil
}

func (e *Engine) prepareWithdrawal(req *domain.OperationRequest, op *domain.PendingOperation) error {
	inv := e.InventorySnapshot()

	switch domain.NoteMode(req.NoteMode) {
	case "", domain.NotesAuto:
		if err := ValidateWithdrawalAmount(req.Amount, inv); err != nil {
			return err
		}
		b, err := Allocate(req.Amount, inv)
		if err != nil {
			return err
		}
		op.NoteMode = domain.NotesAuto
		op.Amount = req.Amount
		op.NoteBreakdown = b

	case domain.NotesCustom:
		counts := make(map[domain.Denomination]int64, len(req.Notes))
		for k, n := range req.Notes {
			d, err := strconv.ParseInt(k, 10, 64)
			if err != nil || d <= 0 {
				return &domain.ErrValidation{Field: "notes", Message: "invalid denomination " + strconv.Quote(k)}
			}
			counts[domain.Denomination(d)] = n
		}
		b, err := BreakdownFromCounts(counts, inv)
		if err != nil {
			return err
		}
		if err := ValidateWithdrawalAmount(b.Total(), inv); err != nil {
			return err
		}
		op.NoteMode = domain.NotesCustom
		op.Amount = b.Total()
		op.NoteBreakdown = b

	default:
		return &domain.ErrValidation{Field: "note_selection", Message: "must be auto or custom"}
	}
	return nil
}

// ============================================================
// Commit: validate and apply a verified operation
// ============================================================

// Commit applies op to ledger after waiting out the processing delay.
// A cancelled ctx during the delay aborts with no mutation. Validation runs
// under the engine lock immediately before the mutation, so a rejected
// operation leaves ledger and inventory untouched. Monetary operations are
// recorded in the ledger and handed to the notifier after the lock is released.
func (e *Engine) Commit(ctx context.Context, op *domain.PendingOperation, ledger *domain.Ledger) (*domain.Outcome, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.Commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("kind", string(op.Kind)),
		attribute.Int64("amount", op.Amount),
	)

	start := time.Now()
	defer func() { e.metrics.RecordCommitDuration(op.Kind, time.Since(start)) }()

	if err := e.wait(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if err := Validate(op, &ledger.Account, &e.terminal); err != nil {
		e.mu.Unlock()
		e.metrics.IncrOperation(op.Kind, observability.ResultRejected)
		return nil, err
	}
	outcome := e.apply(op, ledger)
	var inv domain.Inventory
	if op.Kind == domain.KindWithdrawal {
		inv = e.terminal.Inventory.Clone()
	}
	e.mu.Unlock()

	e.metrics.IncrOperation(op.Kind, observability.ResultCommitted)
	if inv != nil {
		e.metrics.RecordDispensed(op.NoteBreakdown)
		e.metrics.SetInventory(inv)
	}
	if outcome.Entry != nil && e.notifier != nil {
		e.notifier.Enqueue(ledger.Account.ID, *outcome.Entry)
	}
	return outcome, nil
}

func (e *Engine) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.delay <= 0 {
		return nil
	}
	t := time.NewTimer(e.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// apply mutates ledger and inventory. Callers hold e.mu and have validated op.
func (e *Engine) apply(op *domain.PendingOperation, ledger *domain.Ledger) *domain.Outcome {
	acct := &ledger.Account

	switch op.Kind {
	case domain.KindWithdrawal:
		acct.Balance -= op.Total()
		acct.DailyWithdrawn += op.Amount
		for d, n := range op.NoteBreakdown {
			e.terminal.Inventory[d] -= n
		}
	case domain.KindDeposit:
		acct.Balance += op.Amount
	case domain.KindTransfer:
		acct.Balance -= op.Total()
	case domain.KindBalanceCheck:
		balance := acct.Balance
		return &domain.Outcome{Kind: op.Kind, Balance: &balance}
	case domain.KindHistoryAccess:
		history := make([]domain.LedgerEntry, len(ledger.Entries))
		copy(history, ledger.Entries)
		return &domain.Outcome{Kind: op.Kind, History: history}
	}

	location := acct.Location
	if location == "" {
		location = e.terminal.Location
	}
	entry := domain.LedgerEntry{
		ID:            e.newID(),
		Kind:          op.Kind,
		Amount:        op.Amount,
		Fee:           op.Fee,
		Timestamp:     e.clock.Now(),
		BalanceAfter:  acct.Balance,
		Status:        entryStatusCompleted,
		Location:      location,
		RecipientID:   op.RecipientID,
		RecipientName: op.RecipientName,
		NoteBreakdown: op.NoteBreakdown.Clone(),
	}
	ledger.Prepend(entry)
	return &domain.Outcome{Kind: op.Kind, Entry: &entry}
}
