package billing

import (
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
)

// ShouldRemind decides whether a reminder is due for c at now. Rules are
// checked in priority order and the first match wins, so a client gets at
// most one reminder kind per evaluation:
//
//  1. outstanding debt
//  2. overdue messaging category (suspended counts as overdue)
//  3. due date exactly windowDays away
//  4. due date already passed
//
// It returns domain.ReminderNone when no rule matches. The due date is only
// parsed when rules 1 and 2 do not match. An unknown status or a negative
// debt is reported as a data integrity error.
func ShouldRemind(c domain.Client, now time.Time, windowDays int) (domain.ReminderKind, error) {
	if !c.Status.Known() {
		return domain.ReminderNone, &domain.ErrDataIntegrity{ClientID: c.ID, Field: "status", Value: string(c.Status), Reason: "unknown status"}
	}
	if c.Debt < 0 {
		return domain.ReminderNone, &domain.ErrDataIntegrity{ClientID: c.ID, Field: "debt", Value: c.Debt.String(), Reason: "negative amount"}
	}
	if c.Debt > 0 {
		return domain.ReminderDebt, nil
	}
	if c.Status.MessagingCategory() == domain.CategoryOverdue {
		return domain.ReminderOverdue, nil
	}

	due, err := domain.ParseDate(c.DueDate)
	if err != nil {
		return domain.ReminderNone, &domain.ErrDataIntegrity{ClientID: c.ID, Field: "due_date", Value: c.DueDate, Reason: "unparseable date"}
	}
	days := domain.DaysBetween(now, due)
	switch {
	case days == windowDays:
		return domain.ReminderUpcoming, nil
	case days < 0:
		return domain.ReminderPastDue, nil
	}
	return domain.ReminderNone, nil
}
