package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"

	"github.com/jackc/pgx/v5"
)

// ============================================================
// Messages, settings and expenses
// ============================================================

const messageColumns = `id::text, COALESCE(client_id::text, ''), message, type, channel, status,
	COALESCE(error_message, ''), created_at`

func scanMessage(row pgx.Row) (domain.Message, error) {
	var (
		m                    domain.Message
		typ, channel, status string
	)
	err := row.Scan(&m.ID, &m.ClientID, &m.Text, &typ, &channel, &status, &m.ErrorMessage, &m.CreatedAt)
	m.Type = domain.MessageType(typ)
	m.Channel = domain.Channel(channel)
	m.Status = domain.DeliveryStatus(status)
	return m, err
}

// RecordMessage appends one row to the message log.
func (s *Store) RecordMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "Postgres.RecordMessage")
	defer span.End()

	var clientID any
	if validID(m.ClientID) {
		clientID = m.ClientID
	}
	var errMsg any
	if m.ErrorMessage != "" {
		errMsg = m.ErrorMessage
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (client_id, message, type, channel, status, error_message)
		VALUES ($1::uuid, $2, $3, $4, $5, $6)
		RETURNING `+messageColumns,
		clientID, m.Text, string(m.Type), string(m.Channel), string(m.Status), errMsg,
	)
	out, err := scanMessage(row)
	if err != nil {
		return nil, mapError(err, "messages", "")
	}
	return &out, nil
}

// ListMessages returns the newest messages first.
func (s *Store) ListMessages(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListMessages")
	defer span.End()

	var (
		where []string
		args  []any
	)
	if filter.ClientID != "" {
		if !validID(filter.ClientID) {
			return []domain.Message{}, nil
		}
		args = append(args, filter.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d::uuid", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	sql := "SELECT " + messageColumns + " FROM messages"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "messages", "")
	}
	defer rows.Close()

	out := []domain.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, mapError(err, "messages", "")
		}
		out = append(out, m)
	}
	return out, mapError(rows.Err(), "messages", "")
}

const settingsColumns = `id::text, company_name, notification_enabled, payment_reminder_days,
	default_channel, template_debt, template_overdue, template_upcoming, template_past_due`

func scanSettings(row pgx.Row) (*domain.Settings, error) {
	var (
		st      domain.Settings
		channel string
	)
	err := row.Scan(&st.ID, &st.CompanyName, &st.NotificationEnabled, &st.PaymentReminderDays,
		&channel, &st.TemplateDebt, &st.TemplateOverdue, &st.TemplateUpcoming, &st.TemplatePastDue)
	if err != nil {
		return nil, err
	}
	st.DefaultChannel = domain.Channel(channel)
	return &st, nil
}

// GetSettings reads the settings row; (nil, nil) when there is none.
func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetSettings")
	defer span.End()

	st, err := scanSettings(s.pool.QueryRow(ctx, "SELECT "+settingsColumns+" FROM settings ORDER BY updated_at DESC LIMIT 1"))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "settings", "")
	}
	return st, nil
}

// SaveSettings upserts the settings row.
func (s *Store) SaveSettings(ctx context.Context, in *domain.Settings) (*domain.Settings, error) {
	ctx, span := tracer.Start(ctx, "Postgres.SaveSettings")
	defer span.End()

	args := []any{
		in.CompanyName, in.NotificationEnabled, in.PaymentReminderDays, string(in.Channel()),
		in.TemplateDebt, in.TemplateOverdue, in.TemplateUpcoming, in.TemplatePastDue,
	}
	var sql string
	if in.ID != "" && validID(in.ID) {
		args = append(args, in.ID)
		sql = `UPDATE settings SET company_name = $1, notification_enabled = $2, payment_reminder_days = $3,
			default_channel = $4, template_debt = $5, template_overdue = $6, template_upcoming = $7,
			template_past_due = $8 WHERE id = $9 RETURNING ` + settingsColumns
	} else {
		sql = `INSERT INTO settings (company_name, notification_enabled, payment_reminder_days, default_channel,
			template_debt, template_overdue, template_upcoming, template_past_due)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING ` + settingsColumns
	}
	st, err := scanSettings(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(err, "settings", in.ID)
	}
	return st, nil
}

const expenseColumns = `id::text, description, ROUND(amount * 100)::bigint, category,
	to_char(date, 'YYYY-MM-DD'), created_at`

func scanExpense(row pgx.Row) (domain.Expense, error) {
	var (
		e      domain.Expense
		amount int64
	)
	err := row.Scan(&e.ID, &e.Description, &amount, &e.Category, &e.Date, &e.CreatedAt)
	e.Amount = domain.Money(amount)
	return e, err
}

// ListExpenses returns expenses, newest date first.
func (s *Store) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListExpenses")
	defer span.End()

	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.From != "" {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("date >= $%d::date", len(args)))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("date <= $%d::date", len(args)))
	}

	sql := "SELECT " + expenseColumns + " FROM expenses"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY date DESC, created_at DESC"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "expenses", "")
	}
	defer rows.Close()

	out := []domain.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, mapError(err, "expenses", "")
		}
		out = append(out, e)
	}
	return out, mapError(rows.Err(), "expenses", "")
}

// GetExpense fetches one expense.
func (s *Store) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetExpense")
	defer span.End()

	if !validID(id) {
		return nil, &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	e, err := scanExpense(s.pool.QueryRow(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = $1", id))
	if err != nil {
		return nil, mapError(err, "expense", id)
	}
	return &e, nil
}

// InsertExpense creates an expense.
func (s *Store) InsertExpense(ctx context.Context, in *domain.Expense) (*domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "Postgres.InsertExpense")
	defer span.End()

	e, err := scanExpense(s.pool.QueryRow(ctx, `
		INSERT INTO expenses (description, amount, category, date)
		VALUES ($1, $2::numeric / 100, $3, $4::date)
		RETURNING `+expenseColumns,
		in.Description, int64(in.Amount), in.Category, in.Date,
	))
	if err != nil {
		return nil, mapError(err, "expenses", "")
	}
	return &e, nil
}

// UpdateExpense replaces the editable fields of an expense.
func (s *Store) UpdateExpense(ctx context.Context, id string, in domain.ExpenseInput) (*domain.Expense, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateExpense")
	defer span.End()

	if !validID(id) {
		return nil, &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	e, err := scanExpense(s.pool.QueryRow(ctx, `
		UPDATE expenses SET description = $1, amount = $2::numeric / 100, category = $3, date = $4::date
		WHERE id = $5
		RETURNING `+expenseColumns,
		in.Description, int64(in.Amount), in.Category, in.Date, id,
	))
	if err != nil {
		return nil, mapError(err, "expense", id)
	}
	return &e, nil
}

// DeleteExpense removes an expense.
func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteExpense")
	defer span.End()

	if !validID(id) {
		return &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM expenses WHERE id = $1", id)
	if err != nil {
		return mapError(err, "expense", id)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	return nil
}
