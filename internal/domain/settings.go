package domain

// Defaults applied when a settings row or column is missing.
const (
	DefaultReminderDays   = 3
	DefaultReminderWindow = DefaultReminderDays
	DefaultChannel        = ChannelWhatsApp
)

// Settings mirrors the single row of the settings table. Pointer fields are
// nullable columns; use the accessor methods to get effective values.
type Settings struct {
	ID                  string  `json:"id,omitempty"`
	CompanyName         string  `json:"company_name,omitempty"`
	NotificationEnabled *bool   `json:"notification_enabled"`
	PaymentReminderDays *int    `json:"payment_reminder_days"`
	DefaultChannel      Channel `json:"default_channel,omitempty"`

	TemplateDebt     string `json:"template_debt,omitempty"`
	TemplateOverdue  string `json:"template_overdue,omitempty"`
	TemplateUpcoming string `json:"template_upcoming,omitempty"`
	TemplatePastDue  string `json:"template_past_due,omitempty"`
}

// NotificationsOn is true only when notifications were explicitly enabled.
// A nil receiver (no settings row at all) keeps notifications off.
func (s *Settings) NotificationsOn() bool {
	return s != nil && s.NotificationEnabled != nil && *s.NotificationEnabled
}

// ReminderWindow returns payment_reminder_days, or 3 when absent or negative.
func (s *Settings) ReminderWindow() int {
	if s == nil || s.PaymentReminderDays == nil || *s.PaymentReminderDays < 0 {
		return DefaultReminderWindow
	}
	return *s.PaymentReminderDays
}

// Channel returns the configured default channel or WhatsApp.
func (s *Settings) Channel() Channel {
	if s == nil || s.DefaultChannel == "" {
		return DefaultChannel
	}
	return s.DefaultChannel
}

// Template returns the custom template for a reminder kind, or "" when unset.
func (s *Settings) Template(kind ReminderKind) string {
	if s == nil {
		return ""
	}
	switch kind {
	case ReminderDebt:
		return s.TemplateDebt
	case ReminderOverdue:
		return s.TemplateOverdue
	case ReminderUpcoming:
		return s.TemplateUpcoming
	case ReminderPastDue:
		return s.TemplatePastDue
	}
	return ""
}

// SettingsView is the settings row plus the effective values the billing
// scan will use.
type SettingsView struct {
	Settings             *Settings `json:"settings"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	ReminderWindowDays   int       `json:"reminder_window_days"`
	Channel              Channel   `json:"channel"`
}

// View builds the SettingsView for s (which may be nil).
func (s *Settings) View() SettingsView {
	return SettingsView{
		Settings:             s,
		NotificationsEnabled: s.NotificationsOn(),
		ReminderWindowDays:   s.ReminderWindow(),
		Channel:              s.Channel(),
	}
}
