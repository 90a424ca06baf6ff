package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsService_MissingRowMeansDefaults(t *testing.T) {
	h := newHarness(t, "2024-06-01")

	st, err := h.settings.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st)

	view := st.View()
	assert.False(t, view.NotificationsEnabled)
	assert.Equal(t, 3, view.ReminderWindowDays)
	assert.Equal(t, domain.ChannelWhatsApp, view.Channel)
}

func TestSettingsService_UpdateRefreshesCache(t *testing.T) {
	h := newHarness(t, "2024-06-01")
	ctx := context.Background()

	_, err := h.settings.GetSettings(ctx)
	require.NoError(t, err)

	on := true
	days := 7
	_, err = h.settings.UpdateSettings(ctx, domain.Settings{NotificationEnabled: &on, PaymentReminderDays: &days, DefaultChannel: "SMS"})
	require.NoError(t, err)

	st, err := h.settings.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, st.NotificationsOn())
	assert.Equal(t, 7, st.ReminderWindow())
	assert.Equal(t, domain.ChannelSMS, st.Channel())
}

func TestSettingsService_ChangeFeedInvalidates(t *testing.T) {
	h := newHarness(t, "2024-06-01")
	ctx := context.Background()

	st, err := h.settings.GetSettings(ctx)
	require.NoError(t, err)
	require.Nil(t, st)

	// Written behind the service's back, e.g. by another instance.
	days := 2
	_, err = h.store.SaveSettings(ctx, &domain.Settings{PaymentReminderDays: &days})
	require.NoError(t, err)

	st, err = h.settings.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.ReminderWindow())
}

func TestSettingsService_Validation(t *testing.T) {
	h := newHarness(t, "2024-06-01")
	ctx := context.Background()
	var ve *domain.ErrValidation

	neg := -1
	_, err := h.settings.UpdateSettings(ctx, domain.Settings{PaymentReminderDays: &neg})
	assert.True(t, errors.As(err, &ve))

	_, err = h.settings.UpdateSettings(ctx, domain.Settings{DefaultChannel: "email"})
	assert.True(t, errors.As(err, &ve))
}

func TestExpenseService_Validation(t *testing.T) {
	h := newHarness(t, "2024-06-01")
	ctx := context.Background()

	tests := []struct {
		name  string
		in    domain.ExpenseInput
		field string
	}{
		{"no description", domain.ExpenseInput{Amount: 1, Date: "2024-06-01"}, "description"},
		{"zero amount", domain.ExpenseInput{Description: "x", Date: "2024-06-01"}, "amount"},
		{"bad date", domain.ExpenseInput{Description: "x", Amount: 1, Date: "junho"}, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.expenses.CreateExpense(ctx, tt.in)
			var ve *domain.ErrValidation
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestExpenseService_CRUD(t *testing.T) {
	h := newHarness(t, "2024-06-01")
	ctx := context.Background()

	e, err := h.expenses.CreateExpense(ctx, domain.ExpenseInput{Description: "Energia", Amount: cents(45000), Category: " Energia ", Date: "2024-06-05"})
	require.NoError(t, err)
	assert.Equal(t, "energia", e.Category)

	e, err = h.expenses.UpdateExpense(ctx, e.ID, domain.ExpenseInput{Description: "Energia junho", Amount: cents(46000), Date: "2024-06-05"})
	require.NoError(t, err)
	assert.Equal(t, cents(46000), e.Amount)
	assert.Equal(t, "outros", e.Category)

	list, err := h.expenses.ListExpenses(ctx, domain.ExpenseFilter{From: "2024-06-01", To: "2024-06-30"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, h.expenses.DeleteExpense(ctx, e.ID))
	_, err = h.expenses.GetExpense(ctx, e.ID)
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}
