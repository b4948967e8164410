package service

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/observability"
	"github.com/boddenberg/atm-terminal-go/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Notifier accepts committed entries for best-effort delivery.
type Notifier interface {
	Enqueue(accountID string, entry domain.LedgerEntry) bool
}

type notification struct {
	accountID string
	entry     domain.LedgerEntry
}

// Dispatcher delivers notifications from a bounded queue on a fixed pool of
// workers. Delivery failures are logged and counted, never returned.
type Dispatcher struct {
	sink    port.NotificationSink
	queue   chan notification
	workers int
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	group  *errgroup.Group
}

// NewDispatcher creates a dispatcher. Call Start before enqueueing.
func NewDispatcher(sink port.NotificationSink, queueSize, workers int, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		sink:    sink,
		queue:   make(chan notification, queueSize),
		workers: workers,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// Start launches the workers. They run until Close drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	g, ctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for n := range d.queue {
				d.deliver(ctx, n)
			}
			return nil
		})
	}
	d.group = g
}

// Enqueue hands an entry to the workers without blocking. It reports false
// when the queue is full or the dispatcher is closed.
func (d *Dispatcher) Enqueue(accountID string, entry domain.LedgerEntry) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(accountID, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- notification{accountID: accountID, entry: entry}:
		return true
	default:
		d.drop(accountID, "queue full")
		return false
	}
}

// Close stops accepting notifications and waits for queued ones to be delivered.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	if d.group == nil {
		return nil
	}
	return d.group.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, n notification) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.sink.Notify(ctx, n.accountID, n.entry); err != nil {
		d.metrics.IncrNotification(observability.NotificationFailed)
		d.logger.Warn("notification failed",
			zap.String("account_id", n.accountID),
			zap.String("entry_id", n.entry.ID),
			zap.Error(err),
		)
		return
	}
	d.metrics.IncrNotification(observability.NotificationSent)
}

func (d *Dispatcher) drop(accountID, reason string) {
	d.metrics.IncrNotification(observability.NotificationDropped)
	d.logger.Warn("notification dropped",
		zap.String("account_id", accountID),
		zap.String("reason", reason),
	)
}

// ============================================================
// LogSink: notification sink used when no SMS gateway is configured
// ============================================================

// LogSink writes notifications to the log instead of sending them.
type LogSink struct {
	accounts port.CredentialStore
	logger   *zap.Logger
}

// NewLogSink creates a sink that resolves the phone number from accounts.
func NewLogSink(accounts port.CredentialStore, logger *zap.Logger) *LogSink {
	return &LogSink{accounts: accounts, logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, accountID string, entry domain.LedgerEntry) error {
	phone := ""
	if acct, err := s.accounts.LoadAccount(ctx, accountID); err == nil && acct != nil {
		phone = acct.Phone
	}
	s.logger.Info("sms notification",
		zap.String("account_id", accountID),
		zap.String("phone", phone),
		zap.String("message", entry.NotificationText()),
	)
	return nil
}
