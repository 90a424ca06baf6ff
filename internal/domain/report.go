package domain

// DashboardSummary is returned by GET /v1/reports/dashboard.
type DashboardSummary struct {
	TotalClients     int                  `json:"total_clients"`
	ByStatus         map[ClientStatus]int `json:"by_status"`
	ExpectedRevenue  Money                `json:"expected_revenue"`  // tariffs of non-suspended clients
	CollectedRevenue Money                `json:"collected_revenue"` // tariffs of paid clients
	TotalDebt        Money                `json:"total_debt"`
	ClientsWithDebt  int                  `json:"clients_with_debt"`
	MonthExpenses    Money                `json:"month_expenses"`
	ExpensesByCat    map[string]Money     `json:"expenses_by_category"`
	Net              Money                `json:"net"`
	UpcomingDue      []Client             `json:"upcoming_due"`
	OverdueCount     int                  `json:"overdue_count"`
	Month            string               `json:"month"` // YYYY-MM
	GeneratedAt      string               `json:"generated_at"`
}

// MonthlyExpenses is one row of an expense report.
type MonthlyExpenses struct {
	Month      string           `json:"month"` // YYYY-MM
	Total      Money            `json:"total"`
	ByCategory map[string]Money `json:"by_category"`
}

// ExpenseReport is returned by GET /v1/reports/expenses.
type ExpenseReport struct {
	Year   int               `json:"year"`
	Total  Money             `json:"total"`
	Months []MonthlyExpenses `json:"months"`
}

// ScanSkip records a client the scan could not evaluate or persist.
type ScanSkip struct {
	ClientID string `json:"client_id"`
	Reason   string `json:"reason"`
}

// ScanReport summarizes one billing scan.
type ScanReport struct {
	StartedAt       string           `json:"started_at"`
	FinishedAt      string           `json:"finished_at"`
	Evaluated       int              `json:"evaluated"`
	Updated         int              `json:"updated"`
	Skipped         []ScanSkip       `json:"skipped"`
	RemindersSent   int              `json:"reminders_sent"`
	RemindersFailed int              `json:"reminders_failed"`
	Inconsistencies []ScanSkip       `json:"inconsistencies"`
	Reminders       []DispatchResult `json:"reminders,omitempty"`
}
