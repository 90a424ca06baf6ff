package supabase

import (
	"context"
	"net/http"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

const defaultMessageLimit = 100

// RecordMessage appends one row to the message log.
func (c *Client) RecordMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	row := map[string]any{
		"client_id": m.ClientID,
		"message":   m.Text,
		"type":      string(m.Type),
		"channel":   string(m.Channel),
		"status":    string(m.Status),
	}
	if m.ErrorMessage != "" {
		row["error_message"] = m.ErrorMessage
	}

	var out *domain.Message
	err := c.call(ctx, "RecordMessage", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodPost, port.TableMessages, row, preferRepresentation)
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Message](resp.body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrConstraintViolation{Resource: port.TableMessages, Detail: "insert returned no row"}
		}
		out = &rows[0]
		return nil
	}, attribute.String("client.id", m.ClientID))
	return out, err
}

// ListMessages returns the newest messages first.
func (c *Client) ListMessages(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	q := from(port.TableMessages).selectCols("*").order("created_at.desc").limit(limit)
	if filter.ClientID != "" {
		q.eq("client_id", filter.ClientID)
	}
	if filter.Type != "" {
		q.eq("type", string(filter.Type))
	}

	var out []domain.Message
	err := c.call(ctx, "ListMessages", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodGet, q.String(), nil, "")
		if err != nil {
			return err
		}
		out, err = decodeRows[domain.Message](resp.body)
		return err
	})
	if out == nil && err == nil {
		out = []domain.Message{}
	}
	return out, err
}
