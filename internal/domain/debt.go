package domain

// DebtPaymentInput is the body of POST /v1/clients/{id}/debt/payments.
type DebtPaymentInput struct {
	Amount Money `json:"amount"`
}

// DebtChargeInput is the body of POST /v1/clients/{id}/debt/charges.
type DebtChargeInput struct {
	Amount Money  `json:"amount"`
	Reason string `json:"reason"`
}

// DebtPaymentResult is the outcome of applying a payment against a client's debt.
type DebtPaymentResult struct {
	Client    *Client `json:"client"`
	Paid      Money   `json:"paid"`
	Remaining Money   `json:"remaining"`
	FullyPaid bool    `json:"fully_paid"`
}

// ReminderEligibility answers "would a reminder fire for this client now?".
type ReminderEligibility struct {
	ClientID             string       `json:"client_id"`
	Kind                 ReminderKind `json:"kind"`
	Eligible             bool         `json:"eligible"`
	WindowDays           int          `json:"window_days"`
	NotificationsEnabled bool         `json:"notifications_enabled"`
	RemindedToday        bool         `json:"reminded_today"`
}
