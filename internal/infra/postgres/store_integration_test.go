package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/postgres"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Runs against a disposable database given in TEST_DATABASE_URL.
func newStore(t *testing.T) (*postgres.Store, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, postgres.ApplyMigrations(ctx, pool, postgres.Migrations(""), zap.NewNop()))
	_, err = pool.Exec(ctx, "TRUNCATE clients, messages, settings, expenses")
	require.NoError(t, err)
	return postgres.NewStore(pool, zap.NewNop()), pool.Close
}

func TestStore_ClientLifecycle(t *testing.T) {
	s, closeFn := newStore(t)
	defer closeFn()
	ctx := context.Background()

	c, err := s.InsertClient(ctx, &domain.Client{
		Name: "Ana", Phone: "+5511999990000", AmountPaid: 9990, DueDate: "2024-03-01", Status: domain.StatusPending,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, domain.Money(9990), c.AmountPaid)

	status := domain.StatusPaid
	due := "2024-04-01"
	debt := domain.Money(9990)
	prevDue := "2024-03-01"
	prevDebt := domain.Money(0)
	updated, err := s.UpdateClient(ctx, c.ID, domain.ClientUpdate{
		Status: &status, DueDate: &due, Debt: &debt, PreviousDueDate: &prevDue, PreviousDebt: &prevDebt,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, updated.Status)
	assert.Equal(t, "2024-04-01", updated.DueDate)
	assert.Equal(t, domain.Money(9990), updated.Debt)
	require.NotNil(t, updated.PreviousDueDate)
	assert.Equal(t, "2024-03-01", *updated.PreviousDueDate)

	negative := domain.Money(-1)
	_, err = s.UpdateClient(ctx, c.ID, domain.ClientUpdate{Debt: &negative})
	var cv *domain.ErrConstraintViolation
	assert.True(t, errors.As(err, &cv), "got %v", err)

	list, err := s.ListClients(ctx, domain.ClientFilter{HasDebt: true, Search: "an"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteClient(ctx, c.ID))
	_, err = s.GetClient(ctx, c.ID)
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestStore_SettingsAbsentThenSaved(t *testing.T) {
	s, closeFn := newStore(t)
	defer closeFn()
	ctx := context.Background()

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	on := true
	saved, err := s.SaveSettings(ctx, &domain.Settings{NotificationEnabled: &on})
	require.NoError(t, err)
	assert.True(t, saved.NotificationsOn())
	assert.Equal(t, 3, saved.ReminderWindow())
}

func TestListener_PublishesTableChanges(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, closeFn := newStore(t)
	defer closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	hub := realtime.NewHub(zap.NewNop())
	changed := make(chan struct{}, 1)
	hub.Subscribe("expenses", func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	go postgres.NewListener(pool, hub, zap.NewNop()).Run(ctx)
	time.Sleep(200 * time.Millisecond)

	_, err = s.InsertExpense(ctx, &domain.Expense{Description: "fiber", Amount: 5000, Category: "network", Date: "2024-06-01"})
	require.NoError(t, err)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}
