package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/realtime"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/resilience"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/supabase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return supabase.NewClient(
		srv.Client(),
		srv.URL,
		"anon-key",
		"service-key",
		resilience.NewCircuitBreaker("supabase-test"),
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)
}

func TestListClients_DecodesAndNormalizes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/clients", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "eq.paid", r.URL.Query().Get("status"))
		assert.Equal(t, "gt.0", r.URL.Query().Get("debt"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id":"c1","name":"Ana","phone":"+5511999990000","amount_paid":"99.90","due_date":"2024-06-10","status":"Paid","debt":150,"previous_due_date":null},
			{"id":"c2","name":"Bia","phone":"+5511999990001","amount_paid":120,"due_date":"2024-06-12","status":"PAID","debt":"10.5"}
		]`)
	})

	clients, err := c.ListClients(context.Background(), domain.ClientFilter{Status: domain.StatusPaid, HasDebt: true})
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, domain.StatusPaid, clients[0].Status)
	assert.Equal(t, domain.Money(9990), clients[0].AmountPaid)
	assert.Equal(t, domain.Money(15000), clients[0].Debt)
	assert.Nil(t, clients[0].PreviousDueDate)
	assert.Equal(t, domain.StatusPaid, clients[1].Status)
	assert.Equal(t, domain.Money(1050), clients[1].Debt)
}

func TestGetClient_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, `[]`)
	})

	_, err := c.GetClient(context.Background(), "missing")
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, "missing", nf.ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpdateClient_SendsPartialFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.c1", r.URL.Query().Get("id"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pending", body["status"])
		assert.Equal(t, 1000.0, body["debt"])
		assert.Contains(t, body, "previous_due_date")
		assert.Nil(t, body["previous_due_date"])
		assert.NotContains(t, body, "name")
		assert.Contains(t, body, "updated_at")

		io.WriteString(w, `[{"id":"c1","name":"Ana","status":"pending","due_date":"2024-07-01","debt":1000,"amount_paid":100}]`)
	})

	status := domain.StatusPending
	debt := domain.Money(100000)
	got, err := c.UpdateClient(context.Background(), "c1", domain.ClientUpdate{
		Status:               &status,
		Debt:                 &debt,
		ClearPreviousDueDate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01", got.DueDate)
}

func TestInsertClient_ConstraintViolation(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"code":"23505","message":"duplicate key value violates unique constraint \"clients_phone_key\""}`)
	})

	_, err := c.InsertClient(context.Background(), &domain.Client{Name: "Ana", Phone: "+5511999990000", DueDate: "2024-06-01", Status: domain.StatusPending})
	var cv *domain.ErrConstraintViolation
	require.True(t, errors.As(err, &cv), "got %v", err)
	assert.Contains(t, cv.Detail, "clients_phone_key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCheckViolationOn400(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":"23514","message":"new row violates check constraint \"clients_debt_check\""}`)
	})

	debt := domain.Money(-1)
	_, err := c.UpdateClient(context.Background(), "c1", domain.ClientUpdate{Debt: &debt})
	var cv *domain.ErrConstraintViolation
	assert.True(t, errors.As(err, &cv), "got %v", err)
}

func TestServerErrorsAreRetriedThenWrapped(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.ListClients(context.Background(), domain.ClientFilter{})
	var ext *domain.ErrExternalService
	require.True(t, errors.As(err, &ext), "got %v", err)
	assert.Equal(t, "supabase/ListClients", ext.Service)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetSettings_EmptyTable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})

	s, err := c.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.False(t, s.NotificationsOn())
	assert.Equal(t, 3, s.ReminderWindow())
}

func TestSaveSettings_PatchesExistingRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.s1", r.URL.Query().Get("id"))
		io.WriteString(w, `[{"id":"s1","notification_enabled":true,"payment_reminder_days":5,"default_channel":"sms"}]`)
	})

	on, days := true, 5
	s, err := c.SaveSettings(context.Background(), &domain.Settings{ID: "s1", NotificationEnabled: &on, PaymentReminderDays: &days, DefaultChannel: domain.ChannelSMS})
	require.NoError(t, err)
	assert.True(t, s.NotificationsOn())
	assert.Equal(t, 5, s.ReminderWindow())
	assert.Equal(t, domain.ChannelSMS, s.Channel())
}

func TestListMessages_Filters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "eq.c1", q.Get("client_id"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "100", q.Get("limit"))
		io.WriteString(w, `[{"id":"m1","client_id":"c1","message":"hello","type":"debt","channel":"whatsapp","status":"sent","created_at":"2024-06-01T09:00:00.123456+00:00"}]`)
	})

	msgs, err := c.ListMessages(context.Background(), domain.MessageFilter{ClientID: "c1"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, domain.MessageTypeDebt, msgs[0].Type)
}

func TestPoller_PublishesOnFingerprintChange(t *testing.T) {
	var version atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		w.Header().Set("Content-Range", "0-0/2")
		if version.Load() == 0 {
			io.WriteString(w, `[{"updated_at":"2024-06-01T09:00:00+00:00"}]`)
			return
		}
		io.WriteString(w, `[{"updated_at":"2024-06-01T10:00:00+00:00"}]`)
	})

	hub := realtime.NewHub(zap.NewNop())
	var fired atomic.Int32
	hub.Subscribe("clients", func() { fired.Add(1) })

	p := supabase.NewPoller(c, hub, time.Second, zap.NewNop())
	p.Poll(context.Background())
	p.Poll(context.Background())
	assert.Equal(t, int32(0), fired.Load(), "no change yet")

	version.Store(1)
	p.Poll(context.Background())
	assert.Equal(t, int32(1), fired.Load())
}
