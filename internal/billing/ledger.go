package billing

import (
	"math"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
)

// PaymentResult is the outcome of applying a payment against a debt.
type PaymentResult struct {
	Remaining domain.Money `json:"remaining"`
	FullyPaid bool         `json:"fully_paid"`
}

// ApplyPayment subtracts amount from debt. Non-positive amounts and
// overpayments are rejected; nothing is clamped.
func ApplyPayment(debt, amount domain.Money) (PaymentResult, error) {
	if amount <= 0 {
		return PaymentResult{}, &domain.ErrInvalidAmount{Amount: amount, Reason: "payment must be positive"}
	}
	if amount > debt {
		return PaymentResult{}, &domain.ErrInvalidAmount{Amount: amount, Limit: debt, Reason: "payment exceeds outstanding debt"}
	}
	remaining := debt - amount
	return PaymentResult{Remaining: remaining, FullyPaid: remaining == 0}, nil
}

// Clear writes off the whole debt.
func Clear(domain.Money) domain.Money {
	return 0
}

// Accrue adds a missed charge to debt.
func Accrue(debt, amount domain.Money) (domain.Money, error) {
	if amount <= 0 {
		return debt, &domain.ErrInvalidAmount{Amount: amount, Reason: "charge must be positive"}
	}
	if debt > domain.Money(math.MaxInt64)-amount {
		return debt, &domain.ErrInvalidAmount{Amount: amount, Reason: "debt would overflow"}
	}
	return debt + amount, nil
}

// ShiftSnapshot moves a pending revert snapshot of the debt by the change a
// ledger operation made to the live balance, so a later RevertPayment still
// removes exactly the tariff MarkPaid accrued. The result is floored at 0: a
// revert never brings back a balance that was paid off or written off. A nil
// snapshot stays nil.
func ShiftSnapshot(snapshot *domain.Money, before, after domain.Money) *domain.Money {
	if snapshot == nil {
		return nil
	}
	shifted := *snapshot + (after - before)
	if shifted < 0 {
		shifted = 0
	}
	return &shifted
}
