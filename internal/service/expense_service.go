package service

import (
	"context"
	"strings"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const defaultExpenseCategory = "outros"

// ExpenseService manages operating costs.
type ExpenseService struct {
	store  port.ExpenseStore
	logger *zap.Logger
}

// NewExpenseService creates the expense service.
func NewExpenseService(store port.ExpenseStore, logger *zap.Logger) *ExpenseService {
	return &ExpenseService{store: store, logger: logger}
}

// ListExpenses returns expenses matching filter.
func (s *ExpenseService) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "ExpenseService.ListExpenses")
	defer span.End()

	for field, v := range map[string]string{"from": filter.From, "to": filter.To} {
		if v == "" {
			continue
		}
		if _, err := domain.ParseDate(v); err != nil {
			return nil, &domain.ErrValidation{Field: field, Message: "must be YYYY-MM-DD"}
		}
	}
	return s.store.ListExpenses(ctx, filter)
}

// GetExpense returns one expense.
func (s *ExpenseService) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "ExpenseService.GetExpense")
	defer span.End()
	span.SetAttributes(attribute.String("expense.id", id))

	return s.store.GetExpense(ctx, id)
}

// CreateExpense validates and stores an expense.
func (s *ExpenseService) CreateExpense(ctx context.Context, in domain.ExpenseInput) (*domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "ExpenseService.CreateExpense")
	defer span.End()

	in, err := normalizeExpense(in)
	if err != nil {
		return nil, err
	}
	e, err := s.store.InsertExpense(ctx, &domain.Expense{
		Description: in.Description,
		Amount:      in.Amount,
		Category:    in.Category,
		Date:        in.Date,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("expense created", zap.String("expense_id", e.ID), zap.String("category", e.Category))
	return e, nil
}

// UpdateExpense replaces an expense's fields.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id string, in domain.ExpenseInput) (*domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "ExpenseService.UpdateExpense")
	defer span.End()
	span.SetAttributes(attribute.String("expense.id", id))

	in, err := normalizeExpense(in)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateExpense(ctx, id, in)
}

// DeleteExpense removes an expense.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "ExpenseService.DeleteExpense")
	defer span.End()
	span.SetAttributes(attribute.String("expense.id", id))

	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.logger.Info("expense deleted", zap.String("expense_id", id))
	return nil
}

func normalizeExpense(in domain.ExpenseInput) (domain.ExpenseInput, error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return in, &domain.ErrValidation{Field: "description", Message: "required"}
	}
	if in.Amount <= 0 {
		return in, &domain.ErrValidation{Field: "amount", Message: "must be > 0"}
	}
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Category == "" {
		in.Category = defaultExpenseCategory
	}
	d, err := domain.ParseDate(in.Date)
	if err != nil {
		return in, &domain.ErrValidation{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	in.Date = domain.FormatDate(d)
	return in, nil
}
