package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz and GET /readyz.
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
	Error       string `json:"error,omitempty"`
}

// BillingMetrics is returned by GET /v1/metrics/billing.
type BillingMetrics struct {
	ScansTotal              int64            `json:"scansTotal"`
	ClientsEvaluated        int64            `json:"clientsEvaluated"`
	ClientsUpdated          int64            `json:"clientsUpdated"`
	ClientsSkipped          int64            `json:"clientsSkipped"`
	RemindersByOutcome      map[string]int64 `json:"remindersByOutcome"`
	LedgerOperations        map[string]int64 `json:"ledgerOperations"`
	DeliveryInconsistencies int64            `json:"deliveryInconsistencies"`
	ExternalErrors          int64            `json:"externalErrors"`
	CacheHitRate            float64          `json:"cacheHitRate"`
	Period                  string           `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
