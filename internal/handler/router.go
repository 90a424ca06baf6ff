package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/observability"
	"github.com/boddenberg/isp-billing-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger is the readiness check of the backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles everything the router dispatches to.
type Services struct {
	Clients       *service.ClientService
	Billing       *service.BillingService
	Notifications *service.NotificationService
	Scans         *service.ScanService
	Settings      *service.SettingsService
	Expenses      *service.ExpenseService
	Reports       *service.ReportService

	Store        Pinger
	StoreBackend string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc, logger))
	r.Get("/readyz", readyzHandler(svc, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Clients
		// =============================================
		r.Get("/clients", listClientsHandler(svc.Clients, logger))
		r.Post("/clients", createClientHandler(svc.Clients, logger))
		r.Post("/clients/import", importClientsHandler(svc.Clients, logger))
		r.Get("/clients/{clientId}", getClientHandler(svc.Clients, logger))
		r.Patch("/clients/{clientId}", updateClientHandler(svc.Clients, logger))
		r.Delete("/clients/{clientId}", deleteClientHandler(svc.Clients, logger))

		// =============================================
		// 2. Billing cycle
		// =============================================
		r.Post("/clients/{clientId}/pay", transitionHandler("pay", svc.Billing.MarkPaid, logger))
		r.Post("/clients/{clientId}/revert", transitionHandler("revert", svc.Billing.RevertPayment, logger))
		r.Post("/clients/{clientId}/toggle", transitionHandler("toggle", svc.Billing.TogglePaid, logger))
		r.Post("/clients/{clientId}/suspend", transitionHandler("suspend", svc.Billing.Suspend, logger))
		r.Post("/clients/{clientId}/reactivate", transitionHandler("reactivate", svc.Billing.Reactivate, logger))

		// =============================================
		// 3. Debt ledger
		// =============================================
		r.Post("/clients/{clientId}/debt/payments", debtPaymentHandler(svc.Billing, logger))
		r.Post("/clients/{clientId}/debt/clear", clearDebtHandler(svc.Billing, logger))
		r.Post("/clients/{clientId}/debt/charges", debtChargeHandler(svc.Billing, logger))

		// =============================================
		// 4. Reminders & message log
		// =============================================
		r.Post("/clients/{clientId}/reminders", sendReminderHandler(svc.Notifications, logger))
		r.Get("/clients/{clientId}/reminder-eligibility", reminderEligibilityHandler(svc.Notifications, logger))
		r.Get("/messages", listMessagesHandler(svc.Notifications, logger))
		r.Post("/scans", runScanHandler(svc.Scans, logger))

		// =============================================
		// 5. Expenses
		// =============================================
		r.Get("/expenses", listExpensesHandler(svc.Expenses, logger))
		r.Post("/expenses", createExpenseHandler(svc.Expenses, logger))
		r.Get("/expenses/{expenseId}", getExpenseHandler(svc.Expenses, logger))
		r.Put("/expenses/{expenseId}", updateExpenseHandler(svc.Expenses, logger))
		r.Delete("/expenses/{expenseId}", deleteExpenseHandler(svc.Expenses, logger))

		// =============================================
		// 6. Settings
		// =============================================
		r.Get("/settings", getSettingsHandler(svc.Settings, logger))
		r.Put("/settings", updateSettingsHandler(svc.Settings, logger))

		// =============================================
		// 7. Reports & metrics
		// =============================================
		r.Get("/reports/dashboard", dashboardHandler(svc.Reports, logger))
		r.Get("/reports/expenses", expenseReportHandler(svc.Reports, logger))
		r.Get("/metrics/billing", billingMetricsHandler(metrics, logger))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "isp-billing-api", Status: "healthy", LastChecked: now},
		}
		if svc.Store != nil {
			services = append(services, checkStore(r.Context(), svc, now, logger))
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

// readyzHandler fails with 503 while the store is unreachable so the
// instance is taken out of rotation.
func readyzHandler(svc Services, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc.Store == nil {
			writeJSON(w, http.StatusOK, domain.HealthStatus{Status: "ready"})
			return
		}
		health := checkStore(r.Context(), svc, time.Now().Format(time.RFC3339), logger)
		status, code := "ready", http.StatusOK
		if health.Status != "healthy" {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		writeJSON(w, code, domain.HealthStatus{Status: status, Services: []domain.ServiceHealth{health}})
	}
}

func checkStore(ctx context.Context, svc Services, now string, logger *zap.Logger) domain.ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := svc.Store.Ping(ctx)
	h := domain.ServiceHealth{
		Name:        svc.StoreBackend,
		Status:      "healthy",
		LatencyMs:   time.Since(start).Milliseconds(),
		LastChecked: now,
	}
	if h.Name == "" {
		h.Name = "store"
	}
	if err != nil {
		logger.Warn("store ping failed", zap.String("backend", h.Name), zap.Error(err))
		h.Status = "unhealthy"
		h.Error = err.Error()
	}
	return h
}

func billingMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetBillingSnapshot())
	}
}
