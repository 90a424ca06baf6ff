package supabase

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Clients: CRUD via PostgREST
// ============================================================

func normalizeClient(c domain.Client) domain.Client {
	c.Status = domain.NormalizeStatus(string(c.Status))
	return c
}

// ListClients returns clients ordered by due date.
func (c *Client) ListClients(ctx context.Context, filter domain.ClientFilter) ([]domain.Client, error) {
	q := from(port.TableClients).selectCols("*").order("due_date.asc,name.asc")
	if filter.Status != "" {
		q.eq("status", string(filter.Status))
	}
	if filter.DueBefore != "" {
		q.op("due_date", "lte", filter.DueBefore)
	}
	if filter.HasDebt {
		q.op("debt", "gt", "0")
	}
	if filter.Search != "" {
		q.search(filter.Search, "name", "phone")
	}

	var out []domain.Client
	err := c.call(ctx, "ListClients", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodGet, q.String(), nil, "")
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Client](resp.body)
		if err != nil {
			return err
		}
		out = make([]domain.Client, 0, len(rows))
		for _, r := range rows {
			out = append(out, normalizeClient(r))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetClient fetches one client by id.
func (c *Client) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	var out *domain.Client
	err := c.call(ctx, "GetClient", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodGet, from(port.TableClients).eq("id", id).limit(1).String(), nil, "")
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Client](resp.body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "client", ID: id}
		}
		cl := normalizeClient(rows[0])
		out = &cl
		return nil
	}, attribute.String("client.id", id))
	return out, err
}

// InsertClient creates a client; id and timestamps come from the database.
func (c *Client) InsertClient(ctx context.Context, in *domain.Client) (*domain.Client, error) {
	row := map[string]any{
		"name":        in.Name,
		"phone":       in.Phone,
		"amount_paid": in.AmountPaid,
		"due_date":    in.DueDate,
		"status":      string(in.Status),
		"debt":        in.Debt,
	}

	var out *domain.Client
	err := c.call(ctx, "InsertClient", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodPost, port.TableClients, row, preferRepresentation)
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Client](resp.body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrConstraintViolation{Resource: port.TableClients, Detail: "insert returned no row"}
		}
		cl := normalizeClient(rows[0])
		out = &cl
		return nil
	})
	return out, err
}

// UpdateClient applies u as a single PATCH filtered by id.
func (c *Client) UpdateClient(ctx context.Context, id string, u domain.ClientUpdate) (*domain.Client, error) {
	fields := u.Fields()
	if len(fields) == 0 {
		return c.GetClient(ctx, id)
	}
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	var out *domain.Client
	err := c.call(ctx, "UpdateClient", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodPatch, from(port.TableClients).eq("id", id).String(), fields, preferRepresentation)
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Client](resp.body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "client", ID: id}
		}
		cl := normalizeClient(rows[0])
		out = &cl
		return nil
	}, attribute.String("client.id", id))
	return out, err
}

// DeleteClient hard-deletes a client.
func (c *Client) DeleteClient(ctx context.Context, id string) error {
	return c.call(ctx, "DeleteClient", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodDelete, from(port.TableClients).eq("id", id).String(), nil, preferRepresentation)
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Client](resp.body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "client", ID: id}
		}
		return nil
	}, attribute.String("client.id", id))
}
