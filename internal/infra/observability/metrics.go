package observability

import (
	"strconv"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Operation results recorded in atm_operations_total.
const (
	ResultCommitted = "committed"
	ResultRejected  = "rejected"
	ResultCancelled = "cancelled"
)

// Notification statuses recorded in atm_notifications_total.
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationDropped = "dropped"
)

var operationKinds = []domain.OperationKind{
	domain.KindWithdrawal,
	domain.KindDeposit,
	domain.KindTransfer,
	domain.KindBalanceCheck,
	domain.KindHistoryAccess,
}

// Metrics holds all Prometheus metrics for the terminal.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operations     *prometheus.CounterVec
	pinAttempts    *prometheus.CounterVec
	lockouts       prometheus.Counter
	notesDispensed *prometheus.CounterVec
	inventory      *prometheus.GaugeVec
	commitDuration *prometheus.HistogramVec
	notifications  *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atm_operations_total",
				Help: "Operations by kind and result.",
			},
			[]string{"kind", "result"},
		),
		pinAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atm_pin_attempts_total",
				Help: "PIN verifications by result.",
			},
			[]string{"result"},
		),
		lockouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "atm_lockouts_total",
				Help: "Sessions locked after too many wrong PINs.",
			},
		),
		notesDispensed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atm_notes_dispensed_total",
				Help: "Notes dispensed by denomination.",
			},
			[]string{"denomination"},
		),
		inventory: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "atm_inventory_notes",
				Help: "Notes currently held by denomination.",
			},
			[]string{"denomination"},
		),
		commitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atm_commit_duration_seconds",
				Help:    "Duration of engine commits by kind, including the processing delay.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atm_notifications_total",
				Help: "Post-commit notifications by delivery status.",
			},
			[]string{"status"},
		),
	}
}

// IncrOperation counts an operation outcome.
func (m *Metrics) IncrOperation(kind domain.OperationKind, result string) {
	m.operations.WithLabelValues(string(kind), result).Inc()
}

// IncrPinAttempt counts a PIN verification ("match" or "mismatch").
func (m *Metrics) IncrPinAttempt(result string) {
	m.pinAttempts.WithLabelValues(result).Inc()
}

// IncrLockout counts a session lockout.
func (m *Metrics) IncrLockout() {
	m.lockouts.Inc()
}

// RecordDispensed adds a committed breakdown to the dispensed counters.
func (m *Metrics) RecordDispensed(b domain.Breakdown) {
	for d, n := range b {
		m.notesDispensed.WithLabelValues(denomLabel(d)).Add(float64(n))
	}
}

// SetInventory publishes the current note counts.
func (m *Metrics) SetInventory(inv domain.Inventory) {
	for d, n := range inv {
		m.inventory.WithLabelValues(denomLabel(d)).Set(float64(n))
	}
}

// RecordCommitDuration records how long a commit took.
func (m *Metrics) RecordCommitDuration(kind domain.OperationKind, d time.Duration) {
	m.commitDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// IncrNotification counts a notification delivery outcome.
func (m *Metrics) IncrNotification(status string) {
	m.notifications.WithLabelValues(status).Inc()
}

// Snapshot returns the counters backing GET /v1/metrics/terminal.
func (m *Metrics) Snapshot(denoms []domain.Denomination) *domain.TerminalMetrics {
	snap := &domain.TerminalMetrics{
		NotesDispensed: make(map[string]int64, len(denoms)),
	}
	for _, k := range operationKinds {
		snap.OperationsCommitted += int64(getCounterValue(m.operations, string(k), ResultCommitted))
		snap.OperationsRejected += int64(getCounterValue(m.operations, string(k), ResultRejected))
	}
	snap.PinMismatches = int64(getCounterValue(m.pinAttempts, "mismatch"))
	snap.Lockouts = int64(counterValue(m.lockouts))
	for _, d := range denoms {
		snap.NotesDispensed[denomLabel(d)] = int64(getCounterValue(m.notesDispensed, denomLabel(d)))
	}
	snap.NotificationsSent = int64(getCounterValue(m.notifications, NotificationSent))
	snap.NotificationsFailed = int64(getCounterValue(m.notifications, NotificationFailed))
	snap.NotificationsDropped = int64(getCounterValue(m.notifications, NotificationDropped))
	return snap
}

func denomLabel(d domain.Denomination) string {
	return strconv.FormatInt(int64(d), 10)
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	return counterValue(cv.WithLabelValues(labels...))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
