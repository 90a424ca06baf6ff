package domain

import "time"

// ============================================================
// Messages (reminders and audit trail)
// ============================================================

// Channel is the transport a message went through.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
	ChannelSystem   Channel = "system" // audit entries, never sent anywhere
)

// ParseChannel accepts "whatsapp" and "sms"; anything else is a validation error.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelWhatsApp, ChannelSMS:
		return Channel(s), nil
	}
	return "", &ErrValidation{Field: "channel", Message: "must be 'whatsapp' or 'sms'"}
}

// ReminderKind tells which reminder rule fired.
type ReminderKind string

const (
	ReminderNone     ReminderKind = ""
	ReminderDebt     ReminderKind = "debt"
	ReminderOverdue  ReminderKind = "overdue"
	ReminderUpcoming ReminderKind = "upcoming"
	ReminderPastDue  ReminderKind = "past_due"
)

// MessageType tags a message log row.
type MessageType string

const (
	MessageTypeDebt     MessageType = "debt"
	MessageTypeOverdue  MessageType = "overdue"
	MessageTypeUpcoming MessageType = "upcoming"
	MessageTypePastDue  MessageType = "past_due"
	MessageTypeManual   MessageType = "manual"
	MessageTypeAudit    MessageType = "audit"
)

// MessageTypeFor maps a reminder rule to its log tag.
func MessageTypeFor(kind ReminderKind) MessageType {
	switch kind {
	case ReminderDebt:
		return MessageTypeDebt
	case ReminderOverdue:
		return MessageTypeOverdue
	case ReminderUpcoming:
		return MessageTypeUpcoming
	case ReminderPastDue:
		return MessageTypePastDue
	}
	return MessageTypeManual
}

// DeliveryStatus of a message log row. "sent" means handed off, not delivered.
type DeliveryStatus string

const (
	DeliverySent     DeliveryStatus = "sent"
	DeliveryFailed   DeliveryStatus = "failed"
	DeliveryRecorded DeliveryStatus = "recorded"
)

// Message is an append-only log entry. It is an audit trail only and is never
// read back to drive billing or reminder logic.
type Message struct {
	ID           string         `json:"id"`
	ClientID     string         `json:"client_id"`
	Text         string         `json:"message"`
	Type         MessageType    `json:"type"`
	Channel      Channel        `json:"channel"`
	Status       DeliveryStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// MessageFilter narrows ListMessages.
type MessageFilter struct {
	ClientID string
	Type     MessageType
	Limit    int
}

// DispatchResult reports a single reminder send.
type DispatchResult struct {
	ClientID string         `json:"client_id"`
	Kind     ReminderKind   `json:"kind"`
	Channel  Channel        `json:"channel"`
	Status   DeliveryStatus `json:"status"`
	Text     string         `json:"message"`
	Error    string         `json:"error,omitempty"`
}
