package supabase

import (
	"context"
	"net/http"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/port"
)

// GetSettings reads the settings row; (nil, nil) when the table is empty.
func (c *Client) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var out *domain.Settings
	err := c.call(ctx, "GetSettings", func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodGet, from(port.TableSettings).selectCols("*").limit(1).String(), nil, "")
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Settings](resp.body)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			out = &rows[0]
		}
		return nil
	})
	return out, err
}

// SaveSettings inserts the row on first save and patches it afterwards.
func (c *Client) SaveSettings(ctx context.Context, s *domain.Settings) (*domain.Settings, error) {
	row := map[string]any{
		"company_name":          s.CompanyName,
		"notification_enabled":  s.NotificationEnabled,
		"payment_reminder_days": s.PaymentReminderDays,
		"default_channel":       string(s.Channel()),
		"template_debt":         s.TemplateDebt,
		"template_overdue":      s.TemplateOverdue,
		"template_upcoming":     s.TemplateUpcoming,
		"template_past_due":     s.TemplatePastDue,
	}

	var out *domain.Settings
	err := c.call(ctx, "SaveSettings", func(ctx context.Context) error {
		method, path := http.MethodPost, port.TableSettings
		if s.ID != "" {
			method, path = http.MethodPatch, from(port.TableSettings).eq("id", s.ID).String()
		}
		resp, err := c.send(ctx, method, path, row, preferRepresentation)
		if err != nil {
			return err
		}
		rows, err := decodeRows[domain.Settings](resp.body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "settings", ID: s.ID}
		}
		out = &rows[0]
		return nil
	})
	return out, err
}
