package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/cache"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/memstore"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/observability"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/realtime"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/resilience"
	"github.com/boddenberg/isp-billing-bfa/internal/port"
	"github.com/boddenberg/isp-billing-bfa/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	Channel domain.Channel
	Phone   string
	Text    string
}

// fakeMessenger records sends. When block is set every send waits on it.
type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	err     error
	block   chan struct{}
	started chan struct{}
}

func (m *fakeMessenger) send(ctx context.Context, ch domain.Channel, phone, text string) error {
	if m.started != nil {
		select {
		case m.started <- struct{}{}:
		default:
		}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{Channel: ch, Phone: phone, Text: text})
	return nil
}

func (m *fakeMessenger) SendWhatsApp(ctx context.Context, phone, text string) error {
	return m.send(ctx, domain.ChannelWhatsApp, phone, text)
}

func (m *fakeMessenger) SendSMS(ctx context.Context, phone, text string) error {
	return m.send(ctx, domain.ChannelSMS, phone, text)
}

func (m *fakeMessenger) Sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

// flakyMessages fails RecordMessage while fail is set.
type flakyMessages struct {
	port.MessageStore
	mu   sync.Mutex
	fail bool
}

func (f *flakyMessages) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *flakyMessages) RecordMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return nil, &domain.ErrExternalService{Service: "supabase/RecordMessage", Err: errors.New("connection refused")}
	}
	return f.MessageStore.RecordMessage(ctx, m)
}

type harness struct {
	store     *memstore.Store
	hub       *realtime.Hub
	messages  *flakyMessages
	messenger *fakeMessenger
	metrics   *observability.Metrics

	mu  sync.Mutex
	now time.Time

	clients  *service.ClientService
	billing  *service.BillingService
	settings *service.SettingsService
	notify   *service.NotificationService
	scans    *service.ScanService
	expenses *service.ExpenseService
	reports  *service.ReportService

	phones int
}

func newHarness(t *testing.T, now string) *harness {
	t.Helper()

	logger := zap.NewNop()
	h := &harness{
		hub:       realtime.NewHub(logger),
		messenger: &fakeMessenger{},
		metrics:   observability.NewMetrics(),
	}
	h.setNow(now)
	h.store = memstore.New(h.hub)
	h.messages = &flakyMessages{MessageStore: h.store}
	clock := service.Clock(func() time.Time {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.now
	})

	settingsCache := cache.New[*domain.Settings](time.Minute)
	reportCache := cache.New[any](time.Minute)
	t.Cleanup(settingsCache.Close)
	t.Cleanup(reportCache.Close)

	h.settings = service.NewSettingsService(h.store, settingsCache, h.metrics, logger)
	t.Cleanup(h.settings.Watch(h.hub))
	h.clients = service.NewClientService(h.store, h.messages, h.metrics, "55", logger)
	h.billing = service.NewBillingService(h.store, h.messages, h.metrics, logger, clock)
	h.notify = service.NewNotificationService(h.store, h.messages, h.settings, h.messenger, resilience.NewBulkhead(4), h.metrics, logger, clock)
	h.scans = service.NewScanService(h.store, h.messages, h.settings, h.notify, h.metrics, logger, clock, 4)
	h.expenses = service.NewExpenseService(h.store, logger)
	h.reports = service.NewReportService(h.store, h.store, h.settings, reportCache, h.metrics, logger, clock)
	t.Cleanup(h.reports.Watch(h.hub))
	return h
}

// setNow sets the clock to noon UTC of day.
func (h *harness) setNow(day string) {
	d, err := time.Parse(domain.DateLayout, day)
	if err != nil {
		panic(err)
	}
	h.mu.Lock()
	h.now = d.Add(12 * time.Hour)
	h.mu.Unlock()
}

// seed inserts a client directly into the store.
func (h *harness) seed(t *testing.T, c domain.Client) *domain.Client {
	t.Helper()
	if c.Phone == "" {
		h.phones++
		c.Phone = fmt.Sprintf("+55119000%05d", h.phones)
	}
	if c.Name == "" {
		c.Name = "Cliente " + c.Phone
	}
	if c.Status == "" {
		c.Status = domain.StatusPending
	}
	created, err := h.store.InsertClient(context.Background(), &c)
	require.NoError(t, err)
	return created
}

func (h *harness) get(t *testing.T, id string) *domain.Client {
	t.Helper()
	c, err := h.store.GetClient(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (h *harness) enableNotifications(t *testing.T, days int) {
	t.Helper()
	on := true
	_, err := h.settings.UpdateSettings(context.Background(), domain.Settings{NotificationEnabled: &on, PaymentReminderDays: &days})
	require.NoError(t, err)
}

func (h *harness) messagesOf(t *testing.T, clientID string, typ domain.MessageType) []domain.Message {
	t.Helper()
	msgs, err := h.store.ListMessages(context.Background(), domain.MessageFilter{ClientID: clientID, Type: typ})
	require.NoError(t, err)
	return msgs
}

func strPtr(s string) *string { return &s }

func cents(v int64) domain.Money { return domain.Money(v) }
