package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/memstore"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ port.Store = (*memstore.Store)(nil)

type recorder struct{ tables []string }

func (r *recorder) Publish(table string) { r.tables = append(r.tables, table) }

func TestStore_ClientCRUDPublishes(t *testing.T) {
	rec := &recorder{}
	s := memstore.New(rec)
	ctx := context.Background()

	c, err := s.InsertClient(ctx, &domain.Client{Name: "Ana", Phone: "+5511999990000", DueDate: "2024-06-10", Status: domain.StatusPending})
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)

	debt := domain.Money(500)
	updated, err := s.UpdateClient(ctx, c.ID, domain.ClientUpdate{Debt: &debt})
	require.NoError(t, err)
	assert.Equal(t, domain.Money(500), updated.Debt)

	require.NoError(t, s.DeleteClient(ctx, c.ID))
	_, err = s.GetClient(ctx, c.ID)
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))

	assert.Equal(t, []string{"clients", "clients", "clients"}, rec.tables)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := memstore.New(nil)
	ctx := context.Background()
	c, err := s.InsertClient(ctx, &domain.Client{Name: "Ana", Phone: "+5511999990000", DueDate: "2024-06-10", Status: domain.StatusPending})
	require.NoError(t, err)

	c.Name = "mutated"
	got, err := s.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
}

func TestStore_Constraints(t *testing.T) {
	s := memstore.New(nil)
	ctx := context.Background()
	c, err := s.InsertClient(ctx, &domain.Client{Name: "Ana", Phone: "+5511999990000", DueDate: "2024-06-10", Status: domain.StatusPending})
	require.NoError(t, err)

	var cv *domain.ErrConstraintViolation
	_, err = s.InsertClient(ctx, &domain.Client{Name: "Dup", Phone: "+5511999990000", DueDate: "2024-06-10", Status: domain.StatusPending})
	assert.True(t, errors.As(err, &cv), "duplicate phone")

	negative := domain.Money(-1)
	_, err = s.UpdateClient(ctx, c.ID, domain.ClientUpdate{Debt: &negative})
	assert.True(t, errors.As(err, &cv), "negative debt")

	got, _ := s.GetClient(ctx, c.ID)
	assert.Equal(t, domain.Money(0), got.Debt, "rejected update leaves record untouched")
}

func TestStore_ListFiltersAndOrder(t *testing.T) {
	s := memstore.New(nil)
	ctx := context.Background()
	for _, in := range []domain.Client{
		{Name: "Caio", Phone: "+5511900000003", DueDate: "2024-06-20", Status: domain.StatusPaid},
		{Name: "Ana", Phone: "+5511900000001", DueDate: "2024-06-10", Status: domain.StatusPending, Debt: 100},
		{Name: "Bia", Phone: "+5511900000002", DueDate: "2024-06-10", Status: domain.StatusSuspended},
	} {
		_, err := s.InsertClient(ctx, &in)
		require.NoError(t, err)
	}

	all, err := s.ListClients(ctx, domain.ClientFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Ana", "Bia", "Caio"}, []string{all[0].Name, all[1].Name, all[2].Name})

	debtors, _ := s.ListClients(ctx, domain.ClientFilter{HasDebt: true})
	assert.Len(t, debtors, 1)

	search, _ := s.ListClients(ctx, domain.ClientFilter{Search: "BI"})
	require.Len(t, search, 1)
	assert.Equal(t, "Bia", search[0].Name)

	due, _ := s.ListClients(ctx, domain.ClientFilter{DueBefore: "2024-06-15"})
	assert.Len(t, due, 2)
}

func TestStore_MessagesNewestFirst(t *testing.T) {
	s := memstore.New(nil)
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := s.RecordMessage(ctx, &domain.Message{ClientID: "c1", Text: text, Type: domain.MessageTypeAudit})
		require.NoError(t, err)
	}
	_, _ = s.RecordMessage(ctx, &domain.Message{ClientID: "c2", Text: "other"})

	msgs, err := s.ListMessages(ctx, domain.MessageFilter{ClientID: "c1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "three", msgs[0].Text)
	assert.Equal(t, "two", msgs[1].Text)
}

func TestStore_Settings(t *testing.T) {
	s := memstore.New(nil)
	ctx := context.Background()

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	days := 5
	saved, err := s.SaveSettings(ctx, &domain.Settings{PaymentReminderDays: &days})
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelWhatsApp, saved.DefaultChannel)

	again, err := s.SaveSettings(ctx, &domain.Settings{})
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID)
}
