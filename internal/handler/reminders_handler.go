package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Reminders, message log and scans
// ============================================================

type sendReminderRequest struct {
	Channel string `json:"channel"`
}

func sendReminderHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/clients/{clientId}/reminders")
		defer span.End()

		clientID := chi.URLParam(r, "clientId")
		span.SetAttributes(attribute.String("client.id", clientID))

		// the body is optional; an empty one sends on the configured channel
		var req sendReminderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			handleServiceError(w, &domain.ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}, logger)
			return
		}

		res, err := svc.SendReminder(ctx, clientID, req.Channel)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("reminder.kind", string(res.Kind)))
		writeJSON(w, http.StatusOK, res)
	}
}

func reminderEligibilityHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/reminder-eligibility")
		defer span.End()

		el, err := svc.Eligibility(ctx, chi.URLParam(r, "clientId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, el)
	}
}

func listMessagesHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/messages")
		defer span.End()

		limit, err := queryInt(r, "limit")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		filter := domain.MessageFilter{
			ClientID: r.URL.Query().Get("client_id"),
			Type:     domain.MessageType(r.URL.Query().Get("type")),
			Limit:    limit,
		}

		msgs, err := svc.ListMessages(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if msgs == nil {
			msgs = []domain.Message{}
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Message]{Data: msgs, Total: len(msgs)})
	}
}

// runScanHandler triggers a scan out of schedule. ?pass=rollover or
// ?pass=reminders runs a single pass; the default runs both.
func runScanHandler(svc *service.ScanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/scans")
		defer span.End()

		pass := r.URL.Query().Get("pass")
		span.SetAttributes(attribute.String("scan.pass", pass))

		var (
			report *domain.ScanReport
			err    error
		)
		switch pass {
		case "", "all":
			report, err = svc.RunScan(ctx)
		case "rollover":
			report, err = svc.RunRollover(ctx)
		case "reminders":
			report, err = svc.RunReminders(ctx)
		default:
			err = &domain.ErrValidation{Field: "pass", Message: "must be 'all', 'rollover' or 'reminders'"}
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
