// Package service holds the billing use cases: client management, manual
// billing actions, the periodic scan, reminders, settings, expenses and
// reports. Pure rules live in internal/billing; services load a fresh
// snapshot from the store, ask the rules for the intended mutation and
// persist it as one update-by-id.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/observability"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var tracer = otel.Tracer("service")

// Clock returns the evaluation time. Its location decides calendar days.
type Clock func() time.Time

// SystemClock returns the wall clock in loc.
func SystemClock(loc *time.Location) Clock {
	return func() time.Time { return time.Now().In(loc) }
}

// auditor appends audit entries to the message log. A failed append is
// logged and counted but never fails the mutation it describes: the client
// row is already written at that point.
type auditor struct {
	messages port.MessageStore
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func (a auditor) record(ctx context.Context, clientID, text string) {
	_, err := a.messages.RecordMessage(ctx, &domain.Message{
		ClientID: clientID,
		Text:     text,
		Type:     domain.MessageTypeAudit,
		Channel:  domain.ChannelSystem,
		Status:   domain.DeliveryRecorded,
	})
	if err != nil {
		a.metrics.IncrAuditFailure()
		a.logger.Error("audit entry not recorded",
			zap.String("client_id", clientID),
			zap.String("text", text),
			zap.Error(err),
		)
	}
}

var brl = message.NewPrinter(language.BrazilianPortuguese)

// formatBRL renders an amount as shown to clients and operators ("R$ 1.234,50").
func formatBRL(m domain.Money) string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + brl.Sprintf("R$ %d,%02d", v/100, v%100)
}

// formatDateBR renders a stored YYYY-MM-DD date as DD/MM/YYYY. Unparseable
// values are returned as stored.
func formatDateBR(s string) string {
	t, err := domain.ParseDate(s)
	if err != nil {
		return s
	}
	return t.Format("02/01/2006")
}

// countExternal bumps the external error counter when err came from the
// store or the messaging transport.
func countExternal(m *observability.Metrics, err error) {
	var (
		ext     *domain.ErrExternalService
		open    *domain.ErrCircuitOpen
		timeout *domain.ErrTimeout
		service string
	)
	switch {
	case errors.As(err, &ext):
		service = ext.Service
	case errors.As(err, &open):
		service = open.Service
	case errors.As(err, &timeout):
		service = timeout.Operation
	default:
		return
	}
	service, _, _ = strings.Cut(service, "/")
	switch service {
	case "supabase", "postgres":
		m.IncrExternalError(service)
	default:
		m.IncrExternalError("messaging")
	}
}
