package domain

import "time"

// Expense is an operating cost. It feeds reports only, never billing logic.
type Expense struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Amount      Money     `json:"amount"`
	Category    string    `json:"category"`
	Date        string    `json:"date"` // YYYY-MM-DD
	CreatedAt   time.Time `json:"created_at"`
}

// ExpenseInput is the create/update payload.
type ExpenseInput struct {
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

// ExpenseFilter narrows ListExpenses. From/To are inclusive YYYY-MM-DD bounds.
type ExpenseFilter struct {
	Category string
	From     string
	To       string
}

// Matches reports whether e satisfies the filter.
func (f ExpenseFilter) Matches(e Expense) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.From != "" && e.Date < f.From {
		return false
	}
	if f.To != "" && e.Date > f.To {
		return false
	}
	return true
}
