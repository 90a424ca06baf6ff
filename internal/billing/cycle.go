// Package billing holds the billing-cycle evaluator, the debt ledger and the
// reminder trigger policy. Everything here is pure: functions take a client
// snapshot plus the evaluation time and return the intended mutation. Callers
// persist it.
package billing

import (
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
)

// ReversionWindowDays is how close a paid client's due date must be before a
// new cycle starts.
const ReversionWindowDays = 10

// Action is a manual admin action applied during an evaluation.
type Action string

const (
	ActionNone       Action = ""
	ActionMarkPaid   Action = "mark_paid"
	ActionRevert     Action = "revert_payment"
	ActionToggle     Action = "toggle_paid"
	ActionSuspend    Action = "suspend"
	ActionReactivate Action = "reactivate"

	// ActionRollover is the automatic Paid -> Pending cycle start.
	ActionRollover Action = "rollover"
)

// Transition is the intended new state of a client. Snapshot fields hold the
// values a later RevertPayment restores; ClearSnapshots writes them as NULL.
type Transition struct {
	ClientID   string
	Action     Action
	FromStatus domain.ClientStatus
	Status     domain.ClientStatus
	DueDate    string
	Debt       domain.Money
	Accrued    domain.Money

	PreviousDueDate *string
	PreviousDebt    *domain.Money
	ClearSnapshots  bool
}

// Update renders the transition as one update-by-id.
func (t Transition) Update() domain.ClientUpdate {
	status := t.Status
	due := t.DueDate
	debt := t.Debt
	u := domain.ClientUpdate{
		Status:  &status,
		DueDate: &due,
		Debt:    &debt,
	}
	if t.ClearSnapshots {
		u.ClearPreviousDueDate = true
		u.ClearPreviousDebt = true
	} else {
		u.PreviousDueDate = t.PreviousDueDate
		u.PreviousDebt = t.PreviousDebt
	}
	return u
}

// AddMonths moves t forward n calendar months, keeping the day of month and
// clamping it to the last day of the target month (Jan 31 + 1 = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// EvaluateRollover applies the automatic rule: a paid client whose due date is
// at most ReversionWindowDays away starts a new cycle one month later and goes
// back to pending. Debt is never touched here. ok is false when nothing changes.
func EvaluateRollover(c domain.Client, now time.Time) (Transition, bool, error) {
	due, err := checkClient(c)
	if err != nil {
		return Transition{}, false, err
	}
	if c.Status != domain.StatusPaid {
		return Transition{}, false, nil
	}
	if domain.DaysBetween(now, due) > ReversionWindowDays {
		return Transition{}, false, nil
	}
	return Transition{
		ClientID:       c.ID,
		Action:         ActionRollover,
		FromStatus:     c.Status,
		Status:         domain.StatusPending,
		DueDate:        domain.FormatDate(AddMonths(due, 1)),
		Debt:           c.Debt,
		ClearSnapshots: true,
	}, true, nil
}

// MarkPaid moves a pending, suspended or legacy overdue client to paid and
// advances the due date one month. When the due date had already passed the
// missed cycle's tariff is accrued as debt. The pre-transition due date and
// debt are kept so one RevertPayment can restore them.
func MarkPaid(c domain.Client, now time.Time) (Transition, error) {
	due, err := checkClient(c)
	if err != nil {
		return Transition{}, err
	}
	switch c.Status {
	case domain.StatusPending, domain.StatusSuspended, domain.StatusOverdue:
	default:
		return Transition{}, invalidTransition(c.Status, domain.StatusPaid)
	}

	debt := c.Debt
	var accrued domain.Money
	if domain.DaysBetween(due, now) > 0 && c.AmountPaid > 0 {
		debt, err = Accrue(c.Debt, c.AmountPaid)
		if err != nil {
			return Transition{}, err
		}
		accrued = c.AmountPaid
	}

	prevDue := c.DueDate
	prevDebt := c.Debt
	return Transition{
		ClientID:        c.ID,
		Action:          ActionMarkPaid,
		FromStatus:      c.Status,
		Status:          domain.StatusPaid,
		DueDate:         domain.FormatDate(AddMonths(due, 1)),
		Debt:            debt,
		Accrued:         accrued,
		PreviousDueDate: &prevDue,
		PreviousDebt:    &prevDebt,
	}, nil
}

// RevertPayment moves a paid client back to pending, restoring the due date
// and debt saved by MarkPaid. The snapshot is consumed: a second revert has
// nothing to restore and keeps the current values.
func RevertPayment(c domain.Client) (Transition, error) {
	if _, err := checkClient(c); err != nil {
		return Transition{}, err
	}
	if c.Status != domain.StatusPaid {
		return Transition{}, invalidTransition(c.Status, domain.StatusPending)
	}

	due := c.DueDate
	if c.PreviousDueDate != nil {
		if _, err := domain.ParseDate(*c.PreviousDueDate); err != nil {
			return Transition{}, &domain.ErrDataIntegrity{ClientID: c.ID, Field: "previous_due_date", Value: *c.PreviousDueDate, Reason: "unparseable date"}
		}
		due = *c.PreviousDueDate
	}
	debt := c.Debt
	if c.PreviousDebt != nil {
		if *c.PreviousDebt < 0 {
			return Transition{}, &domain.ErrDataIntegrity{ClientID: c.ID, Field: "previous_debt", Value: c.PreviousDebt.String(), Reason: "negative amount"}
		}
		debt = *c.PreviousDebt
	}

	return Transition{
		ClientID:       c.ID,
		Action:         ActionRevert,
		FromStatus:     c.Status,
		Status:         domain.StatusPending,
		DueDate:        due,
		Debt:           debt,
		ClearSnapshots: true,
	}, nil
}

// TogglePaid reverts a paid client and marks any other client paid.
func TogglePaid(c domain.Client, now time.Time) (Transition, error) {
	if c.Status == domain.StatusPaid {
		return RevertPayment(c)
	}
	return MarkPaid(c, now)
}

// Suspend puts a pending client on the suspension axis. Due date and debt stay.
func Suspend(c domain.Client) (Transition, error) {
	return suspension(c, ActionSuspend, domain.StatusSuspended, domain.StatusPending, domain.StatusOverdue)
}

// Reactivate takes a suspended client back to pending. Due date and debt stay.
func Reactivate(c domain.Client) (Transition, error) {
	return suspension(c, ActionReactivate, domain.StatusPending, domain.StatusSuspended)
}

func suspension(c domain.Client, action Action, to domain.ClientStatus, from ...domain.ClientStatus) (Transition, error) {
	if _, err := checkClient(c); err != nil {
		return Transition{}, err
	}
	allowed := false
	for _, s := range from {
		if c.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return Transition{}, invalidTransition(c.Status, to)
	}
	t := Transition{
		ClientID:        c.ID,
		Action:          action,
		FromStatus:      c.Status,
		Status:          to,
		DueDate:         c.DueDate,
		Debt:            c.Debt,
		PreviousDueDate: c.PreviousDueDate,
		PreviousDebt:    c.PreviousDebt,
	}
	return t, nil
}

// Evaluate runs one evaluation pass for a client. A manual action wins over
// the automatic rollover: when one is given, rollover is not considered in
// the same pass.
func Evaluate(c domain.Client, now time.Time, manual Action) (Transition, bool, error) {
	var (
		t   Transition
		err error
	)
	switch manual {
	case ActionNone:
		return EvaluateRollover(c, now)
	case ActionMarkPaid:
		t, err = MarkPaid(c, now)
	case ActionRevert:
		t, err = RevertPayment(c)
	case ActionToggle:
		t, err = TogglePaid(c, now)
	case ActionSuspend:
		t, err = Suspend(c)
	case ActionReactivate:
		t, err = Reactivate(c)
	default:
		return Transition{}, false, &domain.ErrValidation{Field: "action", Message: "unknown action " + string(manual)}
	}
	if err != nil {
		return Transition{}, false, err
	}
	return t, true, nil
}

// checkClient validates the stored fields evaluation depends on and returns
// the parsed due date.
func checkClient(c domain.Client) (time.Time, error) {
	if !c.Status.Known() {
		return time.Time{}, &domain.ErrDataIntegrity{ClientID: c.ID, Field: "status", Value: string(c.Status), Reason: "unknown status"}
	}
	if c.AmountPaid < 0 {
		return time.Time{}, &domain.ErrDataIntegrity{ClientID: c.ID, Field: "amount_paid", Value: c.AmountPaid.String(), Reason: "negative amount"}
	}
	if c.Debt < 0 {
		return time.Time{}, &domain.ErrDataIntegrity{ClientID: c.ID, Field: "debt", Value: c.Debt.String(), Reason: "negative amount"}
	}
	due, err := domain.ParseDate(c.DueDate)
	if err != nil {
		return time.Time{}, &domain.ErrDataIntegrity{ClientID: c.ID, Field: "due_date", Value: c.DueDate, Reason: "unparseable date"}
	}
	return due, nil
}

func invalidTransition(from, to domain.ClientStatus) error {
	return &domain.ErrValidation{
		Field:   "status",
		Message: "cannot move client from " + string(from) + " to " + string(to),
	}
}
