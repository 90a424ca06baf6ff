package handler

import (
	"net/http"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Expenses
// ============================================================

func listExpensesHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expenses")
		defer span.End()

		q := r.URL.Query()
		expenses, err := svc.ListExpenses(ctx, domain.ExpenseFilter{
			Category: q.Get("category"),
			From:     q.Get("from"),
			To:       q.Get("to"),
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if expenses == nil {
			expenses = []domain.Expense{}
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Expense]{Data: expenses, Total: len(expenses)})
	}
}

func getExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expenses/{expenseId}")
		defer span.End()

		e, err := svc.GetExpense(ctx, chi.URLParam(r, "expenseId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func createExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/expenses")
		defer span.End()

		var in domain.ExpenseInput
		if err := decodeJSON(r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		e, err := svc.CreateExpense(ctx, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

func updateExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/expenses/{expenseId}")
		defer span.End()

		var in domain.ExpenseInput
		if err := decodeJSON(r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		e, err := svc.UpdateExpense(ctx, chi.URLParam(r, "expenseId"), in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func deleteExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/expenses/{expenseId}")
		defer span.End()

		id := chi.URLParam(r, "expenseId")
		if err := svc.DeleteExpense(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "expense deleted", ID: id})
	}
}
