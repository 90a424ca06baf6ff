package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	c := domain.Client{Name: "Ana", AmountPaid: cents(123450), Debt: cents(5000), DueDate: "2024-06-04"}

	assert.Equal(t,
		"Olá Ana, sua mensalidade de R$ 1.234,50 vence em 04/06/2024.",
		service.Render(domain.ReminderUpcoming, c, nil))

	st := &domain.Settings{CompanyName: "NetFibra", TemplateDebt: "{name}: {debt} pendente com {company}"}
	assert.Equal(t, "Ana: R$ 50,00 pendente com NetFibra", service.Render(domain.ReminderDebt, c, st))

	assert.Contains(t, service.Render(domain.ReminderOverdue, c, st), "em atraso", "blank custom template falls back to built-in")
}

func TestNotificationService_SendReminderChannelOverride(t *testing.T) {
	h := newHarness(t, "2024-06-01")
	c := h.seed(t, domain.Client{Name: "Ana", DueDate: "2024-06-20", AmountPaid: cents(9990)})

	res, err := h.notify.SendReminder(context.Background(), c.ID, "SMS")
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelSMS, res.Channel)
	assert.Equal(t, domain.ReminderNone, res.Kind)
	assert.Equal(t, domain.DeliverySent, res.Status)

	sent := h.messenger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, c.Phone, sent[0].Phone)
	assert.Contains(t, sent[0].Text, "20/06/2024")

	logged := h.messagesOf(t, c.ID, domain.MessageTypeManual)
	require.Len(t, logged, 1)
	assert.Equal(t, domain.ChannelSMS, logged[0].Channel)
}

func TestNotificationService_SendReminderRejectsUnknownChannel(t *testing.T) {
	h := newHarness(t, "2024-06-01")
	c := h.seed(t, domain.Client{DueDate: "2024-06-20"})

	_, err := h.notify.SendReminder(context.Background(), c.ID, "telegram")
	var ve *domain.ErrValidation
	assert.True(t, errors.As(err, &ve))
	assert.Empty(t, h.messenger.Sent())
}

func TestNotificationService_SendFailureReturnedAndLogged(t *testing.T) {
	h := newHarness(t, "2024-06-01")
	c := h.seed(t, domain.Client{DueDate: "2024-05-01"})
	h.messenger.err = &domain.ErrCircuitOpen{Service: "twilio"}

	res, err := h.notify.SendReminder(context.Background(), c.ID, "")
	var open *domain.ErrCircuitOpen
	require.True(t, errors.As(err, &open))
	assert.Equal(t, domain.DeliveryFailed, res.Status)

	logged := h.messagesOf(t, c.ID, domain.MessageTypePastDue)
	require.Len(t, logged, 1)
	assert.Equal(t, domain.DeliveryFailed, logged[0].Status)

	assert.Equal(t, int64(1), h.metrics.GetBillingSnapshot().ExternalErrors)
	assert.Nil(t, h.get(t, c.ID).LastRemindedAt, "failed send must not count as reminded")
}

func TestNotificationService_Inconsistency(t *testing.T) {
	h := newHarness(t, "2024-06-01")
	c := h.seed(t, domain.Client{DueDate: "2024-05-01"})
	h.messages.setFail(true)

	_, err := h.notify.SendReminder(context.Background(), c.ID, "")
	var inc *domain.ErrDeliveryInconsistency
	require.True(t, errors.As(err, &inc), "got %v", err)
	assert.True(t, inc.Sent)
	assert.Len(t, h.messenger.Sent(), 1, "the send is not rolled back")
}

func TestNotificationService_Eligibility(t *testing.T) {
	h := newHarness(t, "2024-06-01")
	h.enableNotifications(t, 5)
	c := h.seed(t, domain.Client{DueDate: "2024-06-06"})

	el, err := h.notify.Eligibility(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, el.Eligible)
	assert.Equal(t, domain.ReminderUpcoming, el.Kind)
	assert.Equal(t, 5, el.WindowDays)
	assert.True(t, el.NotificationsEnabled)
	assert.False(t, el.RemindedToday)
	assert.Empty(t, h.messenger.Sent())
}

func TestNotificationService_ListMessagesLimit(t *testing.T) {
	h := newHarness(t, "2024-06-01")
	_, err := h.notify.ListMessages(context.Background(), domain.MessageFilter{Limit: 5000})
	var ve *domain.ErrValidation
	assert.True(t, errors.As(err, &ve))
}
