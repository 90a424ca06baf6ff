// Package messaging implements port.Messenger over Twilio, a generic HTTP
// SMS/WhatsApp gateway, an SQS outbox queue and a log-only sink.
// A nil error means the text was handed off, not that it was delivered.
package messaging

import (
	"context"
	"errors"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("messaging")

// guard runs send under a span, the circuit breaker and retry, and maps the
// outcome to domain errors the same way the store adapters do.
func guard(ctx context.Context, service string, channel domain.Channel, cb *gobreaker.CircuitBreaker, cfg resilience.Config, send func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "Messenger."+service)
	defer span.End()
	span.SetAttributes(attribute.String("channel", string(channel)))

	_, err := cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, cfg, func() error {
			return send(ctx)
		})
	})
	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: service}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: service + "/send"}
	}
	if !resilience.Retryable(err) {
		return err
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

func requirePhone(phone string) error {
	if phone == "" {
		return &domain.ErrValidation{Field: "phone", Message: "recipient phone is empty"}
	}
	return nil
}
