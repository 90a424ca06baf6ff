package supabase

import (
	"context"
	"net/http"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Expenses: CRUD via PostgREST
// ============================================================

func expenseRow(in domain.ExpenseInput) map[string]any {
	return map[string]any{
		"description": in.Description,
		"amount":      in.Amount,
		"category":    in.Category,
		"date":        in.Date,
	}
}

// ListExpenses returns expenses, newest date first.
func (c *Client) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	q := from(port.TableExpenses).selectCols("*").order("date.desc")
	if filter.Category != "" {
		q.eq("category", filter.Category)
	}
	if filter.From != "" {
		q.op("date", "gte", filter.From)
	}
	if filter.To != "" {
		q.op("date", "lte", filter.To)
	}

	var out []domain.Expense
	err := c.call(ctx, "ListExpenses", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodGet, q.String(), nil, "")
		if err != nil {
			return err
		}
		out, err = decodeRows[domain.Expense](resp.body)
		return err
	})
	if out == nil && err == nil {
		out = []domain.Expense{}
	}
	return out, err
}

// GetExpense fetches one expense.
func (c *Client) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	var out *domain.Expense
	err := c.call(ctx, "GetExpense", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodGet, from(port.TableExpenses).eq("id", id).limit(1).String(), nil, "")
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Expense](resp.body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "expense", ID: id}
		}
		out = &rows[0]
		return nil
	}, attribute.String("expense.id", id))
	return out, err
}

// InsertExpense creates an expense.
func (c *Client) InsertExpense(ctx context.Context, e *domain.Expense) (*domain.Expense, error) {
	row := expenseRow(domain.ExpenseInput{Description: e.Description, Amount: e.Amount, Category: e.Category, Date: e.Date})

	var out *domain.Expense
	err := c.call(ctx, "InsertExpense", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodPost, port.TableExpenses, row, preferRepresentation)
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Expense](resp.body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrConstraintViolation{Resource: port.TableExpenses, Detail: "insert returned no row"}
		}
		out = &rows[0]
		return nil
	})
	return out, err
}

// UpdateExpense replaces the editable fields of an expense.
func (c *Client) UpdateExpense(ctx context.Context, id string, in domain.ExpenseInput) (*domain.Expense, error) {
	var out *domain.Expense
	err := c.call(ctx, "UpdateExpense", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodPatch, from(port.TableExpenses).eq("id", id).String(), expenseRow(in), preferRepresentation)
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Expense](resp.body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "expense", ID: id}
		}
		out = &rows[0]
		return nil
	}, attribute.String("expense.id", id))
	return out, err
}

// DeleteExpense removes an expense.
func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.call(ctx, "DeleteExpense", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodDelete, from(port.TableExpenses).eq("id", id).String(), nil, preferRepresentation)
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Expense](resp.body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "expense", ID: id}
		}
		return nil
	}, attribute.String("expense.id", id))
}
