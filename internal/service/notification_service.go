package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/billing"
	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/observability"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/resilience"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Built-in reminder templates. Placeholders: {name}, {amount}, {debt},
// {due_date}, {company}.
var defaultTemplates = map[domain.ReminderKind]string{
	domain.ReminderDebt:     "Olá {name}, consta em aberto um débito de {debt} com a {company}. Por favor, regularize seu pagamento.",
	domain.ReminderOverdue:  "Olá {name}, sua mensalidade de {amount} está em atraso e seu acesso pode ser suspenso. Regularize o quanto antes.",
	domain.ReminderUpcoming: "Olá {name}, sua mensalidade de {amount} vence em {due_date}.",
	domain.ReminderPastDue:  "Olá {name}, sua mensalidade de {amount} venceu em {due_date}. Por favor, efetue o pagamento.",
	domain.ReminderNone:     "Olá {name}, lembrete da {company}: sua mensalidade de {amount} vence em {due_date}.",
}

const defaultCompanyName = "sua provedora"

// NotificationService renders and dispatches reminders and keeps the
// message log. Sends go through a bulkhead so a scan cannot flood the
// transport.
type NotificationService struct {
	clients   port.ClientStore
	messages  port.MessageStore
	settings  *SettingsService
	messenger port.Messenger
	bulkhead  *resilience.Bulkhead
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       Clock
}

// NewNotificationService creates the notification service.
func NewNotificationService(
	clients port.ClientStore,
	messages port.MessageStore,
	settings *SettingsService,
	messenger port.Messenger,
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
	now Clock,
) *NotificationService {
	return &NotificationService{
		clients:   clients,
		messages:  messages,
		settings:  settings,
		messenger: messenger,
		bulkhead:  bulkhead,
		metrics:   metrics,
		logger:    logger,
		now:       now,
	}
}

// Render fills the reminder template for kind. Custom templates from
// settings win over the built-in ones.
func Render(kind domain.ReminderKind, c domain.Client, st *domain.Settings) string {
	tmpl := st.Template(kind)
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultTemplates[kind]
	}
	company := defaultCompanyName
	if st != nil && st.CompanyName != "" {
		company = st.CompanyName
	}
	return strings.NewReplacer(
		"{name}", c.Name,
		"{amount}", formatBRL(c.AmountPaid),
		"{debt}", formatBRL(c.Debt),
		"{due_date}", formatDateBR(c.DueDate),
		"{company}", company,
	).Replace(tmpl)
}

// Dispatch renders and sends one reminder, then records it in the message
// log. A failed send is still recorded, with status "failed". When the log
// write fails the send is not undone: ErrDeliveryInconsistency is returned
// for an operator to reconcile.
func (n *NotificationService) Dispatch(ctx context.Context, c domain.Client, kind domain.ReminderKind, channel domain.Channel, st *domain.Settings) (domain.DispatchResult, error) {
	ctx, span := tracer.Start(ctx, "NotificationService.Dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("client.id", c.ID),
		attribute.String("reminder.kind", string(kind)),
		attribute.String("channel", string(channel)),
	)

	text := Render(kind, c, st)
	res := domain.DispatchResult{ClientID: c.ID, Kind: kind, Channel: channel, Text: text, Status: domain.DeliverySent}

	sendErr := n.bulkhead.Do(ctx, func() error {
		switch channel {
		case domain.ChannelSMS:
			return n.messenger.SendSMS(ctx, c.Phone, text)
		case domain.ChannelWhatsApp:
			return n.messenger.SendWhatsApp(ctx, c.Phone, text)
		}
		return &domain.ErrValidation{Field: "channel", Message: "must be 'whatsapp' or 'sms'"}
	})
	if sendErr != nil {
		res.Status = domain.DeliveryFailed
		res.Error = sendErr.Error()
		countExternal(n.metrics, sendErr)
		span.RecordError(sendErr)
		span.SetStatus(codes.Error, sendErr.Error())
	}
	n.metrics.IncrReminder(kind, string(res.Status))

	_, logErr := n.messages.RecordMessage(ctx, &domain.Message{
		ClientID:     c.ID,
		Text:         text,
		Type:         domain.MessageTypeFor(kind),
		Channel:      channel,
		Status:       res.Status,
		ErrorMessage: res.Error,
	})
	if logErr != nil {
		n.metrics.IncrInconsistency()
		incErr := &domain.ErrDeliveryInconsistency{ClientID: c.ID, Channel: channel, Sent: sendErr == nil, Err: logErr}
		n.logger.Error("reminder delivery and message log disagree",
			zap.String("client_id", c.ID),
			zap.String("channel", string(channel)),
			zap.Bool("sent", sendErr == nil),
			zap.Error(logErr),
		)
		if sendErr != nil {
			return res, errors.Join(sendErr, incErr)
		}
		n.markReminded(ctx, c.ID)
		return res, incErr
	}

	if sendErr != nil {
		n.logger.Warn("reminder not sent",
			zap.String("client_id", c.ID),
			zap.String("kind", string(kind)),
			zap.String("channel", string(channel)),
			zap.Error(sendErr),
		)
		return res, sendErr
	}

	n.markReminded(ctx, c.ID)
	n.logger.Info("reminder sent",
		zap.String("client_id", c.ID),
		zap.String("kind", string(kind)),
		zap.String("channel", string(channel)),
	)
	return res, nil
}

// markReminded stamps last_reminded_at so the scan does not remind the same
// client twice on one day. Failing here only risks a duplicate reminder.
func (n *NotificationService) markReminded(ctx context.Context, clientID string) {
	at := n.now().UTC()
	if _, err := n.clients.UpdateClient(ctx, clientID, domain.ClientUpdate{LastRemindedAt: &at}); err != nil {
		n.logger.Warn("last_reminded_at not updated",
			zap.String("client_id", clientID),
			zap.Error(err),
		)
	}
}

// SendReminder sends a reminder to one client on demand. The text follows
// the rule that would fire now, or a generic reminder when none does.
// channel overrides the configured default when non-empty.
func (n *NotificationService) SendReminder(ctx context.Context, clientID string, channel string) (*domain.DispatchResult, error) {
	ctx, span := tracer.Start(ctx, "NotificationService.SendReminder")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	st, err := n.settings.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	ch := st.Channel()
	if channel != "" {
		if ch, err = domain.ParseChannel(strings.ToLower(channel)); err != nil {
			return nil, err
		}
	}

	c, err := n.clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	kind, err := billing.ShouldRemind(*c, n.now(), st.ReminderWindow())
	if err != nil {
		return nil, err
	}

	res, err := n.Dispatch(ctx, *c, kind, ch, st)
	return &res, err
}

// Eligibility evaluates the reminder policy for one client without sending.
func (n *NotificationService) Eligibility(ctx context.Context, clientID string) (*domain.ReminderEligibility, error) {
	ctx, span := tracer.Start(ctx, "NotificationService.Eligibility")
	defer span.End()

	st, err := n.settings.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	c, err := n.clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	now := n.now()
	kind, err := billing.ShouldRemind(*c, now, st.ReminderWindow())
	if err != nil {
		return nil, err
	}
	return &domain.ReminderEligibility{
		ClientID:             c.ID,
		Kind:                 kind,
		Eligible:             kind != domain.ReminderNone,
		WindowDays:           st.ReminderWindow(),
		NotificationsEnabled: st.NotificationsOn(),
		RemindedToday:        remindedOn(*c, now),
	}, nil
}

// ListMessages returns the message log, newest first.
func (n *NotificationService) ListMessages(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "NotificationService.ListMessages")
	defer span.End()

	if filter.Limit < 0 || filter.Limit > 1000 {
		return nil, &domain.ErrValidation{Field: "limit", Message: "must be between 1 and 1000"}
	}
	return n.messages.ListMessages(ctx, filter)
}

// remindedOn reports whether c was already reminded on now's calendar day.
func remindedOn(c domain.Client, now time.Time) bool {
	if c.LastRemindedAt == nil {
		return false
	}
	return domain.CalendarDay(c.LastRemindedAt.In(now.Location())).Equal(domain.CalendarDay(now))
}
