package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

// Amounts are NUMERIC(12,2) columns, read and written as integer cents.
const clientColumns = `id::text, name, phone,
	ROUND(amount_paid * 100)::bigint,
	to_char(due_date, 'YYYY-MM-DD'),
	status,
	ROUND(debt * 100)::bigint,
	to_char(previous_due_date, 'YYYY-MM-DD'),
	ROUND(previous_debt * 100)::bigint,
	last_reminded_at, created_at, updated_at`

// columnCast says how a ClientUpdate field is bound in SQL.
var columnCast = map[string]string{
	"amount_paid":       "$%d::numeric / 100",
	"debt":              "$%d::numeric / 100",
	"previous_debt":     "$%d::numeric / 100",
	"due_date":          "$%d::date",
	"previous_due_date": "$%d::date",
	"last_reminded_at":  "$%d::timestamptz",
}

func scanClient(row pgx.Row) (domain.Client, error) {
	var (
		c            domain.Client
		status       string
		amount, debt int64
		prevDebt     *int64
	)
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &amount, &c.DueDate, &status, &debt,
		&c.PreviousDueDate, &prevDebt, &c.LastRemindedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Client{}, err
	}
	c.Status = domain.NormalizeStatus(status)
	c.AmountPaid = domain.Money(amount)
	c.Debt = domain.Money(debt)
	if prevDebt != nil {
		m := domain.Money(*prevDebt)
		c.PreviousDebt = &m
	}
	return c, nil
}

// bindValue turns domain values into pgx arguments.
func bindValue(v any) any {
	if m, ok := v.(domain.Money); ok {
		return int64(m)
	}
	return v
}

// buildSet renders "col = $n, ..." for a ClientUpdate in stable column order,
// with argument numbering starting at 1.
func buildSet(fields map[string]any) (string, []any) {
	cols := make([]string, 0, len(fields))
	for k := range fields {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	parts := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		v := fields[col]
		if v == nil {
			parts = append(parts, col+" = NULL")
			continue
		}
		args = append(args, bindValue(v))
		placeholder := "$%d"
		if cast, ok := columnCast[col]; ok {
			placeholder = cast
		}
		parts = append(parts, col+" = "+fmt.Sprintf(placeholder, len(args)))
	}
	return strings.Join(parts, ", "), args
}

// validID reports whether id can be a row id; anything else cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ListClients returns clients ordered by due date.
func (s *Store) ListClients(ctx context.Context, filter domain.ClientFilter) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListClients")
	defer span.End()

	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.DueBefore != "" {
		args = append(args, filter.DueBefore)
		where = append(where, fmt.Sprintf("due_date <= $%d::date", len(args)))
	}
	if filter.HasDebt {
		where = append(where, "debt > 0")
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR phone ILIKE $%d)", len(args), len(args)))
	}

	sql := "SELECT " + clientColumns + " FROM clients"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY due_date, name"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "clients", "")
	}
	defer rows.Close()

	out := []domain.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, mapError(err, "clients", "")
		}
		out = append(out, c)
	}
	return out, mapError(rows.Err(), "clients", "")
}

// GetClient fetches a client by id.
func (s *Store) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	if !validID(id) {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	c, err := scanClient(s.pool.QueryRow(ctx, "SELECT "+clientColumns+" FROM clients WHERE id = $1", id))
	if err != nil {
		return nil, mapError(err, "client", id)
	}
	return &c, nil
}

// InsertClient creates a client.
func (s *Store) InsertClient(ctx context.Context, in *domain.Client) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.InsertClient")
	defer span.End()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO clients (name, phone, amount_paid, due_date, status, debt)
		VALUES ($1, $2, $3::numeric / 100, $4::date, $5, $6::numeric / 100)
		RETURNING `+clientColumns,
		in.Name, in.Phone, int64(in.AmountPaid), in.DueDate, string(in.Status), int64(in.Debt),
	)
	c, err := scanClient(row)
	if err != nil {
		return nil, mapError(err, "clients", "")
	}
	return &c, nil
}

// UpdateClient applies u in one UPDATE ... WHERE id.
func (s *Store) UpdateClient(ctx context.Context, id string, u domain.ClientUpdate) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	if !validID(id) {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	fields := u.Fields()
	if len(fields) == 0 {
		return s.GetClient(ctx, id)
	}
	set, args := buildSet(fields)
	args = append(args, id)

	sql := fmt.Sprintf("UPDATE clients SET %s WHERE id = $%d RETURNING %s", set, len(args), clientColumns)
	c, err := scanClient(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(err, "client", id)
	}
	return &c, nil
}

// DeleteClient hard-deletes a client.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteClient")
	defer span.End()

	if !validID(id) {
		return &domain.ErrNotFound{Resource: "client", ID: id}
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM clients WHERE id = $1", id)
	if err != nil {
		return mapError(err, "client", id)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "client", ID: id}
	}
	return nil
}
