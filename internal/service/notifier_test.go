package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/boddenberg/atm-terminal-go/internal/infra/memstore"
	"github.com/boddenberg/atm-terminal-go/internal/infra/observability"
	"github.com/boddenberg/atm-terminal-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSink struct {
	mu    sync.Mutex
	got   []string
	err   error
	block chan struct{}
}

func (s *fakeSink) Notify(_ context.Context, accountID string, entry domain.LedgerEntry) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, accountID+"/"+entry.ID)
	return s.err
}

func (s *fakeSink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func TestDispatcher_DeliversQueuedEntries(t *testing.T) {
	sink := &fakeSink{}
	metrics := observability.NewMetrics()
	d := service.NewDispatcher(sink, 8, 2, time.Second, metrics, zap.NewNop())
	d.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, d.Enqueue("john_doe", domain.LedgerEntry{ID: id}))
	}
	require.NoError(t, d.Close())

	assert.ElementsMatch(t, []string{"john_doe/a", "john_doe/b", "john_doe/c"}, sink.delivered())
	assert.Equal(t, int64(3), metrics.Snapshot(nil).NotificationsSent)
}

func TestDispatcher_FailuresAreCounted(t *testing.T) {
	sink := &fakeSink{err: errors.New("gateway down")}
	metrics := observability.NewMetrics()
	d := service.NewDispatcher(sink, 4, 1, time.Second, metrics, zap.NewNop())
	d.Start(context.Background())

	d.Enqueue("john_doe", domain.LedgerEntry{ID: "a"})
	require.NoError(t, d.Close())

	snap := metrics.Snapshot(nil)
	assert.Equal(t, int64(1), snap.NotificationsFailed)
	assert.Zero(t, snap.NotificationsSent)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	metrics := observability.NewMetrics()
	d := service.NewDispatcher(sink, 1, 1, time.Second, metrics, zap.NewNop())
	d.Start(context.Background())

	// The worker holds one entry, the queue holds one more.
	require.True(t, d.Enqueue("u", domain.LedgerEntry{ID: "1"}))
	require.Eventually(t, func() bool { return d.Enqueue("u", domain.LedgerEntry{ID: "2"}) }, time.Second, time.Millisecond)
	assert.False(t, d.Enqueue("u", domain.LedgerEntry{ID: "3"}))

	close(sink.block)
	require.NoError(t, d.Close())
	assert.GreaterOrEqual(t, metrics.Snapshot(nil).NotificationsDropped, int64(1))
	assert.NotContains(t, sink.delivered(), "u/3")
}

func TestDispatcher_EnqueueAfterClose(t *testing.T) {
	metrics := observability.NewMetrics()
	d := service.NewDispatcher(&fakeSink{}, 4, 1, time.Second, metrics, zap.NewNop())
	d.Start(context.Background())
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	assert.False(t, d.Enqueue("u", domain.LedgerEntry{ID: "late"}))
	assert.Equal(t, int64(1), metrics.Snapshot(nil).NotificationsDropped)
}

func TestLogSink_LogsMessageWithPhone(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.CreateAccount(context.Background(), domain.Account{ID: "john_doe", Phone: "+91-9876543210"}))

	core, logs := observer.New(zap.InfoLevel)
	sink := service.NewLogSink(store, zap.New(core))

	entry := domain.LedgerEntry{ID: "e1", Kind: domain.KindDeposit, Amount: 1000, BalanceAfter: 26000}
	require.NoError(t, sink.Notify(context.Background(), "john_doe", entry))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "+91-9876543210", fields["phone"])
	assert.Equal(t, entry.NotificationText(), fields["message"])
}
