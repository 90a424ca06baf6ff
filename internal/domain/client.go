package domain

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================
// Clients
// ============================================================

// ClientStatus is the persisted billing status of a client.
type ClientStatus string

const (
	StatusPending   ClientStatus = "pending"
	StatusPaid      ClientStatus = "paid"
	StatusSuspended ClientStatus = "suspended"

	// StatusOverdue is accepted when reading legacy rows but never written.
	StatusOverdue ClientStatus = "overdue"
)

// ParseClientStatus parses a status case-insensitively ("Paid", "paid", " PAID ").
func ParseClientStatus(s string) (ClientStatus, error) {
	switch ClientStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusPaid:
		return StatusPaid, nil
	case StatusSuspended:
		return StatusSuspended, nil
	case StatusOverdue:
		return StatusOverdue, nil
	}
	return "", fmt.Errorf("unknown client status %q", s)
}

// NormalizeStatus lowercases a stored status without validating it.
// Unknown values survive so the evaluator can report them per client.
func NormalizeStatus(s string) ClientStatus {
	return ClientStatus(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether s is one of the recognized statuses.
func (s ClientStatus) Known() bool {
	_, err := ParseClientStatus(string(s))
	return err == nil
}

// MessagingCategory is the status as seen by notification logic.
type MessagingCategory string

const (
	CategoryCurrent MessagingCategory = "current"
	CategoryPending MessagingCategory = "pending"
	CategoryOverdue MessagingCategory = "overdue"
)

// MessagingCategory maps a persisted status to its messaging category.
// Suspended is treated as overdue here and only here.
func (s ClientStatus) MessagingCategory() MessagingCategory {
	switch s {
	case StatusPaid:
		return CategoryCurrent
	case StatusSuspended, StatusOverdue:
		return CategoryOverdue
	default:
		return CategoryPending
	}
}

// Client is the central billing entity.
// AmountPaid is the recurring tariff, not a payment event.
type Client struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Phone           string       `json:"phone"`
	AmountPaid      Money        `json:"amount_paid"`
	DueDate         string       `json:"due_date"` // YYYY-MM-DD, next unmet obligation
	Status          ClientStatus `json:"status"`
	Debt            Money        `json:"debt"`
	PreviousDueDate *string      `json:"previous_due_date,omitempty"`
	PreviousDebt    *Money       `json:"previous_debt,omitempty"`
	LastRemindedAt  *time.Time   `json:"last_reminded_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// ClientInput is the payload to create a client (manual onboarding or import row).
type ClientInput struct {
	Name       string       `json:"name"`
	Phone      string       `json:"phone"`
	AmountPaid Money        `json:"amount_paid"`
	DueDate    string       `json:"due_date"`
	Status     ClientStatus `json:"status,omitempty"`
	Debt       Money        `json:"debt,omitempty"`
}

// ClientEdit carries admin edits of descriptive fields. Status and debt change
// only through billing actions.
type ClientEdit struct {
	Name       *string `json:"name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	AmountPaid *Money  `json:"amount_paid,omitempty"`
	DueDate    *string `json:"due_date,omitempty"`
}

// ClientUpdate is a partial replacement of persisted client fields applied as a
// single update-by-id. Nil fields are left untouched; the Clear* flags write NULL.
type ClientUpdate struct {
	Name            *string
	Phone           *string
	AmountPaid      *Money
	DueDate         *string
	Status          *ClientStatus
	Debt            *Money
	PreviousDueDate *string
	PreviousDebt    *Money
	LastRemindedAt  *time.Time

	ClearPreviousDueDate bool
	ClearPreviousDebt    bool
}

// IsEmpty reports whether the update carries no field.
func (u ClientUpdate) IsEmpty() bool {
	return len(u.Fields()) == 0
}

// Fields renders the update as column/value pairs, the shape both store
// adapters write.
func (u ClientUpdate) Fields() map[string]any {
	f := map[string]any{}
	if u.Name != nil {
		f["name"] = *u.Name
	}
	if u.Phone != nil {
		f["phone"] = *u.Phone
	}
	if u.AmountPaid != nil {
		f["amount_paid"] = *u.AmountPaid
	}
	if u.DueDate != nil {
		f["due_date"] = *u.DueDate
	}
	if u.Status != nil {
		f["status"] = string(*u.Status)
	}
	if u.Debt != nil {
		f["debt"] = *u.Debt
	}
	if u.PreviousDueDate != nil {
		f["previous_due_date"] = *u.PreviousDueDate
	} else if u.ClearPreviousDueDate {
		f["previous_due_date"] = nil
	}
	if u.PreviousDebt != nil {
		f["previous_debt"] = *u.PreviousDebt
	} else if u.ClearPreviousDebt {
		f["previous_debt"] = nil
	}
	if u.LastRemindedAt != nil {
		f["last_reminded_at"] = u.LastRemindedAt.UTC().Format(time.RFC3339)
	}
	return f
}

// Apply returns a copy of c with the update applied.
func (u ClientUpdate) Apply(c Client) Client {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Phone != nil {
		c.Phone = *u.Phone
	}
	if u.AmountPaid != nil {
		c.AmountPaid = *u.AmountPaid
	}
	if u.DueDate != nil {
		c.DueDate = *u.DueDate
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.Debt != nil {
		c.Debt = *u.Debt
	}
	if u.PreviousDueDate != nil {
		v := *u.PreviousDueDate
		c.PreviousDueDate = &v
	} else if u.ClearPreviousDueDate {
		c.PreviousDueDate = nil
	}
	if u.PreviousDebt != nil {
		v := *u.PreviousDebt
		c.PreviousDebt = &v
	} else if u.ClearPreviousDebt {
		c.PreviousDebt = nil
	}
	if u.LastRemindedAt != nil {
		v := *u.LastRemindedAt
		c.LastRemindedAt = &v
	}
	return c
}

// ClientFilter narrows ListClients. Zero value lists everything.
type ClientFilter struct {
	Status    ClientStatus
	Search    string // case-insensitive match on name or phone
	DueBefore string // YYYY-MM-DD, inclusive
	HasDebt   bool
}

// Matches reports whether c satisfies the filter. Used by in-memory stores
// and to post-filter remote results.
func (f ClientFilter) Matches(c Client) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(c.Name), q) && !strings.Contains(c.Phone, q) {
			return false
		}
	}
	if f.DueBefore != "" && c.DueDate > f.DueBefore {
		return false
	}
	if f.HasDebt && c.Debt <= 0 {
		return false
	}
	return true
}

// ImportResult reports the outcome of one bulk-import row.
type ImportResult struct {
	Row    int     `json:"row"`
	Client *Client `json:"client,omitempty"`
	Error  string  `json:"error,omitempty"`
}
