package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/billing"
	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/observability"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// BillingService runs manual billing actions and debt-ledger operations.
// Each action reads a fresh client snapshot, computes the transition and
// writes it back as one update-by-id, then appends one audit entry.
type BillingService struct {
	store   port.ClientStore
	audit   auditor
	metrics *observability.Metrics
	logger  *zap.Logger
	now     Clock
}

// NewBillingService creates the billing service.
func NewBillingService(store port.ClientStore, messages port.MessageStore, metrics *observability.Metrics, logger *zap.Logger, now Clock) *BillingService {
	return &BillingService{
		store:   store,
		audit:   auditor{messages: messages, metrics: metrics, logger: logger},
		metrics: metrics,
		logger:  logger,
		now:     now,
	}
}

// MarkPaid marks a pending or suspended client as paid.
func (s *BillingService) MarkPaid(ctx context.Context, id string) (*domain.Client, error) {
	return s.apply(ctx, id, billing.ActionMarkPaid)
}

// RevertPayment undoes the last MarkPaid.
func (s *BillingService) RevertPayment(ctx context.Context, id string) (*domain.Client, error) {
	return s.apply(ctx, id, billing.ActionRevert)
}

// TogglePaid reverts a paid client or marks any other client paid.
func (s *BillingService) TogglePaid(ctx context.Context, id string) (*domain.Client, error) {
	return s.apply(ctx, id, billing.ActionToggle)
}

// Suspend suspends a client.
func (s *BillingService) Suspend(ctx context.Context, id string) (*domain.Client, error) {
	return s.apply(ctx, id, billing.ActionSuspend)
}

// Reactivate lifts a suspension.
func (s *BillingService) Reactivate(ctx context.Context, id string) (*domain.Client, error) {
	return s.apply(ctx, id, billing.ActionReactivate)
}

func (s *BillingService) apply(ctx context.Context, id string, action billing.Action) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "BillingService."+string(action))
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("billing."+string(action), time.Since(start))
	}()

	c, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}

	t, _, err := billing.Evaluate(*c, s.now(), action)
	if err != nil {
		s.logger.Warn("billing action rejected",
			zap.String("client_id", id),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return nil, err
	}

	updated, err := s.store.UpdateClient(ctx, id, t.Update())
	if err != nil {
		countExternal(s.metrics, err)
		return nil, err
	}
	if t.Accrued > 0 {
		s.metrics.IncrLedgerOp("accrue")
	}

	s.logger.Info("billing action applied",
		zap.String("client_id", id),
		zap.String("action", string(t.Action)),
		zap.String("from", string(t.FromStatus)),
		zap.String("to", string(t.Status)),
		zap.String("due_date", t.DueDate),
		zap.Int64("accrued_cents", int64(t.Accrued)),
	)
	s.audit.record(ctx, id, describeTransition(*c, t))
	return updated, nil
}

// ApplyDebtPayment pays off part or all of a client's debt. Overpayment is
// rejected, never clamped.
func (s *BillingService) ApplyDebtPayment(ctx context.Context, id string, amount domain.Money) (*domain.DebtPaymentResult, error) {
	ctx, span := tracer.Start(ctx, "BillingService.ApplyDebtPayment")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	c, err := s.loadForLedger(ctx, span, id)
	if err != nil {
		return nil, err
	}
	res, err := billing.ApplyPayment(c.Debt, amount)
	if err != nil {
		return nil, err
	}

	updated, err := s.writeDebt(ctx, c, res.Remaining, "payment")
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, id, fmt.Sprintf("Pagamento de dívida: %s (restante %s)", formatBRL(amount), formatBRL(res.Remaining)))
	return &domain.DebtPaymentResult{
		Client:    updated,
		Paid:      amount,
		Remaining: res.Remaining,
		FullyPaid: res.FullyPaid,
	}, nil
}

// ClearDebt writes off a client's whole debt.
func (s *BillingService) ClearDebt(ctx context.Context, id string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "BillingService.ClearDebt")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	c, err := s.loadForLedger(ctx, span, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.writeDebt(ctx, c, billing.Clear(c.Debt), "clear")
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, id, "Dívida quitada: "+formatBRL(c.Debt))
	return updated, nil
}

// AddDebt charges an extra amount to a client (late fee, equipment, etc.).
func (s *BillingService) AddDebt(ctx context.Context, id string, amount domain.Money, reason string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "BillingService.AddDebt")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	c, err := s.loadForLedger(ctx, span, id)
	if err != nil {
		return nil, err
	}
	debt, err := billing.Accrue(c.Debt, amount)
	if err != nil {
		return nil, err
	}
	updated, err := s.writeDebt(ctx, c, debt, "charge")
	if err != nil {
		return nil, err
	}

	text := "Dívida adicionada: " + formatBRL(amount)
	if reason = strings.TrimSpace(reason); reason != "" {
		text += " (" + reason + ")"
	}
	s.audit.record(ctx, id, text)
	return updated, nil
}

func (s *BillingService) loadForLedger(ctx context.Context, span trace.Span, id string) (*domain.Client, error) {
	c, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Debt < 0 {
		err := &domain.ErrDataIntegrity{ClientID: id, Field: "debt", Value: c.Debt.String(), Reason: "negative amount"}
		span.RecordError(err)
		return nil, err
	}
	return c, nil
}

// writeDebt persists a new debt balance. A pending revert snapshot of the
// debt moves by the same amount so the tariff accrued by a late MarkPaid is
// still taken back on revert, and never twice.
func (s *BillingService) writeDebt(ctx context.Context, c *domain.Client, debt domain.Money, kind string) (*domain.Client, error) {
	id := c.ID
	u := domain.ClientUpdate{Debt: &debt, PreviousDebt: billing.ShiftSnapshot(c.PreviousDebt, c.Debt, debt)}
	updated, err := s.store.UpdateClient(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrLedgerOp(kind)
	s.logger.Info("debt updated",
		zap.String("client_id", id),
		zap.String("operation", kind),
		zap.Int64("debt_cents", int64(debt)),
	)
	return updated, nil
}

// describeTransition renders the audit text for a status transition.
func describeTransition(before domain.Client, t billing.Transition) string {
	switch t.Action {
	case billing.ActionMarkPaid:
		text := fmt.Sprintf("Pagamento registrado: vencimento %s -> %s", formatDateBR(before.DueDate), formatDateBR(t.DueDate))
		if t.Accrued > 0 {
			text += fmt.Sprintf("; mensalidade em atraso de %s somada à dívida", formatBRL(t.Accrued))
		}
		return text
	case billing.ActionRevert:
		return fmt.Sprintf("Pagamento revertido: vencimento %s -> %s", formatDateBR(before.DueDate), formatDateBR(t.DueDate))
	case billing.ActionSuspend:
		return "Cliente suspenso"
	case billing.ActionReactivate:
		return "Cliente reativado"
	case billing.ActionRollover:
		return fmt.Sprintf("Novo ciclo de cobrança: vencimento %s", formatDateBR(t.DueDate))
	}
	return fmt.Sprintf("Status alterado: %s -> %s", before.Status, t.Status)
}
