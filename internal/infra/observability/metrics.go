package observability

import (
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the billing service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	scans           prometheus.Counter
	scanClients     *prometheus.CounterVec
	reminders       *prometheus.CounterVec
	ledgerOps       *prometheus.CounterVec
	inconsistencies prometheus.Counter
	auditFailures   prometheus.Counter
}

var (
	reminderOutcomes = []string{"sent", "failed"}
	ledgerKinds      = []string{"payment", "clear", "accrue", "charge"}
)

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_request_duration_seconds",
				Help:    "Duration of operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_external_errors_total",
				Help: "Total errors from external services (store, messaging).",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		scans: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_scans_total",
			Help: "Total billing scans run.",
		}),
		scanClients: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_scan_clients_total",
				Help: "Clients seen by scans, by result (evaluated, updated, skipped).",
			},
			[]string{"result"},
		),
		reminders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_reminders_total",
				Help: "Reminders dispatched, by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		ledgerOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_ledger_operations_total",
				Help: "Debt ledger mutations, by kind.",
			},
			[]string{"kind"},
		),
		inconsistencies: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_delivery_inconsistencies_total",
			Help: "Messages handed off whose audit record could not be written.",
		}),
		auditFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "billing_audit_failures_total",
			Help: "Audit log writes that failed after a successful mutation.",
		}),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordScan records one finished scan.
func (m *Metrics) RecordScan(evaluated, updated, skipped int) {
	m.scans.Inc()
	m.scanClients.WithLabelValues("evaluated").Add(float64(evaluated))
	m.scanClients.WithLabelValues("updated").Add(float64(updated))
	m.scanClients.WithLabelValues("skipped").Add(float64(skipped))
}

// IncrReminder counts a reminder by kind and outcome ("sent" or "failed").
func (m *Metrics) IncrReminder(kind domain.ReminderKind, outcome string) {
	m.reminders.WithLabelValues(string(kind), outcome).Inc()
}

// IncrLedgerOp counts a debt ledger mutation.
func (m *Metrics) IncrLedgerOp(kind string) {
	m.ledgerOps.WithLabelValues(kind).Inc()
}

// IncrInconsistency counts a DeliveryInconsistency.
func (m *Metrics) IncrInconsistency() {
	m.inconsistencies.Inc()
}

// IncrAuditFailure counts a failed audit write.
func (m *Metrics) IncrAuditFailure() {
	m.auditFailures.Inc()
}

// GetBillingSnapshot returns a snapshot of billing metrics suitable for the
// GET /v1/metrics/billing endpoint.
func (m *Metrics) GetBillingSnapshot() *domain.BillingMetrics {
	reminders := map[string]int64{}
	kinds := []domain.ReminderKind{domain.ReminderDebt, domain.ReminderOverdue, domain.ReminderUpcoming, domain.ReminderPastDue, ""}
	for _, outcome := range reminderOutcomes {
		var total float64
		for _, k := range kinds {
			total += counterValue(m.reminders.WithLabelValues(string(k), outcome))
		}
		reminders[outcome] = int64(total)
	}

	ledger := map[string]int64{}
	for _, k := range ledgerKinds {
		ledger[k] = int64(counterValue(m.ledgerOps.WithLabelValues(k)))
	}

	var hits, misses float64
	for _, c := range []string{"settings", "dashboard", "expense_report"} {
		hits += counterValue(m.cacheHits.WithLabelValues(c))
		misses += counterValue(m.cacheMisses.WithLabelValues(c))
	}
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	var external float64
	for _, s := range []string{"supabase", "postgres", "messaging"} {
		external += counterValue(m.externalErrors.WithLabelValues(s))
	}

	return &domain.BillingMetrics{
		ScansTotal:              int64(counterValue(m.scans)),
		ClientsEvaluated:        int64(counterValue(m.scanClients.WithLabelValues("evaluated"))),
		ClientsUpdated:          int64(counterValue(m.scanClients.WithLabelValues("updated"))),
		ClientsSkipped:          int64(counterValue(m.scanClients.WithLabelValues("skipped"))),
		RemindersByOutcome:      reminders,
		LedgerOperations:        ledger,
		DeliveryInconsistencies: int64(counterValue(m.inconsistencies)),
		ExternalErrors:          int64(external),
		CacheHitRate:            hitRate,
		Period:                  "all_time",
	}
}

// counterValue extracts the current float64 value from a counter.
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
