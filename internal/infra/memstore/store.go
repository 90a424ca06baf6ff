// Package memstore is an in-memory billing store for local runs and tests.
// It enforces the same constraints as the database schema.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"github.com/google/uuid"
)

// Publisher receives "table changed" signals. *realtime.Hub implements it.
type Publisher interface {
	Publish(table string)
}

// Store implements port.Store in memory.
type Store struct {
	mu       sync.RWMutex
	clients  map[string]domain.Client
	messages []domain.Message
	settings *domain.Settings
	expenses map[string]domain.Expense
	pub      Publisher
	now      func() time.Time
}

// New creates an empty store. pub may be nil.
func New(pub Publisher) *Store {
	return &Store{
		clients:  map[string]domain.Client{},
		expenses: map[string]domain.Expense{},
		pub:      pub,
		now:      time.Now,
	}
}

func (s *Store) publish(table string) {
	if s.pub != nil {
		s.pub.Publish(table)
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func checkClient(c domain.Client) error {
	switch {
	case c.AmountPaid < 0:
		return &domain.ErrConstraintViolation{Resource: port.TableClients, Detail: "amount_paid >= 0"}
	case c.Debt < 0:
		return &domain.ErrConstraintViolation{Resource: port.TableClients, Detail: "debt >= 0"}
	case c.PreviousDebt != nil && *c.PreviousDebt < 0:
		return &domain.ErrConstraintViolation{Resource: port.TableClients, Detail: "previous_debt >= 0"}
	case !c.Status.Known():
		return &domain.ErrConstraintViolation{Resource: port.TableClients, Detail: "unknown status " + string(c.Status)}
	}
	return nil
}

func (s *Store) phoneTaken(phone, exceptID string) bool {
	for id, c := range s.clients {
		if id != exceptID && c.Phone == phone {
			return true
		}
	}
	return false
}

// ListClients returns a copy of matching clients ordered by due date, then name.
func (s *Store) ListClients(_ context.Context, filter domain.ClientFilter) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Client{}
	for _, c := range s.clients {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueDate != out[j].DueDate {
			return out[i].DueDate < out[j].DueDate
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// GetClient returns a copy of one client.
func (s *Store) GetClient(_ context.Context, id string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	return &c, nil
}

// InsertClient stores a new client with a fresh id.
func (s *Store) InsertClient(_ context.Context, in *domain.Client) (*domain.Client, error) {
	c := *in
	c.ID = uuid.NewString()
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := checkClient(c); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.phoneTaken(c.Phone, "") {
		s.mu.Unlock()
		return nil, &domain.ErrConstraintViolation{Resource: port.TableClients, Detail: "duplicate phone " + c.Phone}
	}
	s.clients[c.ID] = c
	s.mu.Unlock()

	s.publish(port.TableClients)
	return &c, nil
}

// UpdateClient applies u atomically.
func (s *Store) UpdateClient(_ context.Context, id string, u domain.ClientUpdate) (*domain.Client, error) {
	s.mu.Lock()
	cur, ok := s.clients[id]
	if !ok {
		s.mu.Unlock()
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	next := u.Apply(cur)
	if err := checkClient(next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if u.Phone != nil && s.phoneTaken(next.Phone, id) {
		s.mu.Unlock()
		return nil, &domain.ErrConstraintViolation{Resource: port.TableClients, Detail: "duplicate phone " + next.Phone}
	}
	next.UpdatedAt = s.now().UTC()
	s.clients[id] = next
	s.mu.Unlock()

	s.publish(port.TableClients)
	return &next, nil
}

// DeleteClient removes a client.
func (s *Store) DeleteClient(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.clients[id]; !ok {
		s.mu.Unlock()
		return &domain.ErrNotFound{Resource: "client", ID: id}
	}
	delete(s.clients, id)
	s.mu.Unlock()

	s.publish(port.TableClients)
	return nil
}

// RecordMessage appends to the message log.
func (s *Store) RecordMessage(_ context.Context, m *domain.Message) (*domain.Message, error) {
	out := *m
	out.ID = uuid.NewString()
	out.CreatedAt = s.now().UTC()

	s.mu.Lock()
	s.messages = append(s.messages, out)
	s.mu.Unlock()

	s.publish(port.TableMessages)
	return &out, nil
}

// ListMessages returns the newest messages first.
func (s *Store) ListMessages(_ context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	out := []domain.Message{}
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.messages[i]
		if filter.ClientID != "" && m.ClientID != filter.ClientID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// GetSettings returns (nil, nil) until settings are saved.
func (s *Store) GetSettings(context.Context) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, nil
	}
	cp := *s.settings
	return &cp, nil
}

// SaveSettings replaces the settings row.
func (s *Store) SaveSettings(_ context.Context, in *domain.Settings) (*domain.Settings, error) {
	if in.PaymentReminderDays != nil && *in.PaymentReminderDays < 0 {
		return nil, &domain.ErrConstraintViolation{Resource: port.TableSettings, Detail: "payment_reminder_days >= 0"}
	}
	cp := *in
	s.mu.Lock()
	if s.settings != nil {
		cp.ID = s.settings.ID
	} else {
		cp.ID = uuid.NewString()
	}
	cp.DefaultChannel = cp.Channel()
	s.settings = &cp
	s.mu.Unlock()

	s.publish(port.TableSettings)
	out := cp
	return &out, nil
}

// ListExpenses returns matching expenses, newest date first.
func (s *Store) ListExpenses(_ context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Expense{}
	for _, e := range s.expenses {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return strings.Compare(out[i].ID, out[j].ID) < 0
	})
	return out, nil
}

// GetExpense returns one expense.
func (s *Store) GetExpense(_ context.Context, id string) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenses[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	return &e, nil
}

// InsertExpense stores a new expense.
func (s *Store) InsertExpense(_ context.Context, in *domain.Expense) (*domain.Expense, error) {
	if in.Amount < 0 {
		return nil, &domain.ErrConstraintViolation{Resource: port.TableExpenses, Detail: "amount >= 0"}
	}
	e := *in
	e.ID = uuid.NewString()
	e.CreatedAt = s.now().UTC()

	s.mu.Lock()
	s.expenses[e.ID] = e
	s.mu.Unlock()

	s.publish(port.TableExpenses)
	return &e, nil
}

// UpdateExpense replaces the editable fields of an expense.
func (s *Store) UpdateExpense(_ context.Context, id string, in domain.ExpenseInput) (*domain.Expense, error) {
	if in.Amount < 0 {
		return nil, &domain.ErrConstraintViolation{Resource: port.TableExpenses, Detail: "amount >= 0"}
	}
	s.mu.Lock()
	e, ok := s.expenses[id]
	if !ok {
		s.mu.Unlock()
		return nil, &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	e.Description, e.Amount, e.Category, e.Date = in.Description, in.Amount, in.Category, in.Date
	s.expenses[id] = e
	s.mu.Unlock()

	s.publish(port.TableExpenses)
	return &e, nil
}

// DeleteExpense removes an expense.
func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.expenses[id]; !ok {
		s.mu.Unlock()
		return &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	delete(s.expenses, id)
	s.mu.Unlock()

	s.publish(port.TableExpenses)
	return nil
}
