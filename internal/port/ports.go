// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the billing
// services from the concrete store, messaging and cache adapters.
package port

import (
	"context"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
)

// Table names, shared by store adapters and change-feed subscribers.
const (
	TableClients  = "clients"
	TableMessages = "messages"
	TableSettings = "settings"
	TableExpenses = "expenses"
)

// ClientStore is the Client Record Store. It exclusively owns persisted
// client state; services work on the copies it returns.
type ClientStore interface {
	ListClients(ctx context.Context, filter domain.ClientFilter) ([]domain.Client, error)
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	// InsertClient stores a new client; the store assigns id and timestamps.
	InsertClient(ctx context.Context, c *domain.Client) (*domain.Client, error)
	// UpdateClient applies a partial update as one atomic update-by-id.
	// It fails with ErrNotFound or ErrConstraintViolation.
	UpdateClient(ctx context.Context, id string, u domain.ClientUpdate) (*domain.Client, error)
	DeleteClient(ctx context.Context, id string) error
}

// MessageStore persists the append-only message log.
type MessageStore interface {
	RecordMessage(ctx context.Context, m *domain.Message) (*domain.Message, error)
	ListMessages(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error)
}

// SettingsStore reads and writes the single settings row.
// GetSettings returns (nil, nil) when no row exists.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*domain.Settings, error)
	SaveSettings(ctx context.Context, s *domain.Settings) (*domain.Settings, error)
}

// ExpenseStore handles operating-cost records.
type ExpenseStore interface {
	ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error)
	GetExpense(ctx context.Context, id string) (*domain.Expense, error)
	InsertExpense(ctx context.Context, e *domain.Expense) (*domain.Expense, error)
	UpdateExpense(ctx context.Context, id string, in domain.ExpenseInput) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
}

// Store is the full persistence surface, implemented by the Supabase,
// Postgres and in-memory adapters.
type Store interface {
	ClientStore
	MessageStore
	SettingsStore
	ExpenseStore

	// Ping checks connectivity for readiness probes.
	Ping(ctx context.Context) error
}

// ChangeFeed notifies that something changed in a table. Callbacks get no
// payload; consumers re-list or invalidate caches.
type ChangeFeed interface {
	Subscribe(table string, fn func()) (unsubscribe func())
}

// Messenger hands a text off to an external transport. Success means
// "handed off", not "delivered".
type Messenger interface {
	SendWhatsApp(ctx context.Context, phone, text string) error
	SendSMS(ctx context.Context, phone, text string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Purge()
}
