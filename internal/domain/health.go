package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// TerminalMetrics is returned by GET /v1/metrics/terminal.
type TerminalMetrics struct {
	OperationsCommitted  int64            `json:"operations_committed"`
	OperationsRejected   int64            `json:"operations_rejected"`
	PinMismatches        int64            `json:"pin_mismatches"`
	Lockouts             int64            `json:"lockouts"`
	NotesDispensed       map[string]int64 `json:"notes_dispensed"`
	NotificationsSent    int64            `json:"notifications_sent"`
	NotificationsFailed  int64            `json:"notifications_failed"`
	NotificationsDropped int64            `json:"notifications_dropped"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
