package billing_test

import (
	"errors"
	"testing"

	"github.com/boddenberg/isp-billing-bfa/internal/billing"
	"github.com/boddenberg/isp-billing-bfa/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldRemind(t *testing.T) {
	now := day("2024-06-01")

	tests := []struct {
		name   string
		client domain.Client
		window int
		want   domain.ReminderKind
	}{
		{
			name:   "debt wins over far due date",
			client: domain.Client{Status: domain.StatusPending, DueDate: "2024-07-01", Debt: 50},
			window: 3,
			want:   domain.ReminderDebt,
		},
		{
			name:   "debt wins over overdue",
			client: domain.Client{Status: domain.StatusSuspended, DueDate: "2024-05-01", Debt: 50},
			window: 3,
			want:   domain.ReminderDebt,
		},
		{
			name:   "suspended counts as overdue",
			client: domain.Client{Status: domain.StatusSuspended, DueDate: "2024-07-01"},
			window: 3,
			want:   domain.ReminderOverdue,
		},
		{
			name:   "legacy overdue status",
			client: domain.Client{Status: domain.StatusOverdue, DueDate: "2024-07-01"},
			window: 3,
			want:   domain.ReminderOverdue,
		},
		{
			name:   "exact window match",
			client: domain.Client{Status: domain.StatusPending, DueDate: "2024-06-04"},
			window: 3,
			want:   domain.ReminderUpcoming,
		},
		{
			name:   "one day outside window",
			client: domain.Client{Status: domain.StatusPending, DueDate: "2024-06-05"},
			window: 3,
			want:   domain.ReminderNone,
		},
		{
			name:   "inside window but not exact",
			client: domain.Client{Status: domain.StatusPending, DueDate: "2024-06-03"},
			window: 3,
			want:   domain.ReminderNone,
		},
		{
			name:   "past due with unreconciled status",
			client: domain.Client{Status: domain.StatusPending, DueDate: "2024-05-31"},
			window: 3,
			want:   domain.ReminderPastDue,
		},
		{
			name:   "due today is not past due",
			client: domain.Client{Status: domain.StatusPending, DueDate: "2024-06-01"},
			window: 3,
			want:   domain.ReminderNone,
		},
		{
			name:   "paid and far out",
			client: domain.Client{Status: domain.StatusPaid, DueDate: "2024-06-20"},
			window: 3,
			want:   domain.ReminderNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := billing.ShouldRemind(tt.client, now, tt.window)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldRemind_DebtSkipsDateParsing(t *testing.T) {
	c := domain.Client{ID: "c1", Status: domain.StatusPending, DueDate: "garbage", Debt: 1}
	got, err := billing.ShouldRemind(c, day("2024-06-01"), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderDebt, got)
}

func TestShouldRemind_BadDate(t *testing.T) {
	c := domain.Client{ID: "c1", Status: domain.StatusPending, DueDate: "garbage"}
	_, err := billing.ShouldRemind(c, day("2024-06-01"), 3)
	assert.Error(t, err)
}

func TestShouldRemind_CorruptRecord(t *testing.T) {
	tests := []struct {
		name   string
		client domain.Client
		field  string
	}{
		{"unknown status", domain.Client{ID: "c1", Status: "cancelled", DueDate: "2024-06-04"}, "status"},
		{"unknown status with debt", domain.Client{ID: "c1", Status: "", DueDate: "2024-06-04", Debt: 100}, "status"},
		{"negative debt", domain.Client{ID: "c1", Status: domain.StatusPending, DueDate: "2024-06-04", Debt: -1}, "debt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := billing.ShouldRemind(tt.client, day("2024-06-01"), 3)
			var integrity *domain.ErrDataIntegrity
			require.True(t, errors.As(err, &integrity), "got %v", err)
			assert.Equal(t, tt.field, integrity.Field)
			assert.Equal(t, domain.ReminderNone, got)
		})
	}
}

func TestShouldRemind_NoSideEffects(t *testing.T) {
	c := domain.Client{ID: "c1", Status: domain.StatusPending, DueDate: "2024-06-04"}
	before := c
	for i := 0; i < 3; i++ {
		got, err := billing.ShouldRemind(c, day("2024-06-01"), 3)
		require.NoError(t, err)
		assert.Equal(t, domain.ReminderUpcoming, got)
	}
	assert.Equal(t, before, c)
}
