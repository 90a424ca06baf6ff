package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/observability"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReportService computes the dashboard and expense reports. Results are
// cached and dropped whenever a table they read from changes.
type ReportService struct {
	clients  port.ClientStore
	expenses port.ExpenseStore
	settings *SettingsService
	cache    port.Cache[any]
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      Clock
}

// NewReportService creates the report service.
func NewReportService(clients port.ClientStore, expenses port.ExpenseStore, settings *SettingsService, cache port.Cache[any], metrics *observability.Metrics, logger *zap.Logger, now Clock) *ReportService {
	return &ReportService{
		clients:  clients,
		expenses: expenses,
		settings: settings,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		now:      now,
	}
}

// Watch purges cached reports on any change to clients, expenses or settings.
func (s *ReportService) Watch(feed port.ChangeFeed) (unsubscribe func()) {
	unsubs := []func(){
		feed.Subscribe(port.TableClients, s.cache.Purge),
		feed.Subscribe(port.TableExpenses, s.cache.Purge),
		feed.Subscribe(port.TableSettings, s.cache.Purge),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Dashboard summarizes clients, revenue, debt and this month's expenses.
func (s *ReportService) Dashboard(ctx context.Context) (*domain.DashboardSummary, error) {
	ctx, span := tracer.Start(ctx, "ReportService.Dashboard")
	defer span.End()

	now := s.now()
	key := "dashboard:" + domain.FormatDate(now)
	if cached, ok := s.cache.Get(key); ok {
		if d, ok := cached.(*domain.DashboardSummary); ok {
			s.metrics.IncrCacheHit("dashboard")
			return d, nil
		}
	}
	s.metrics.IncrCacheMiss("dashboard")

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	var (
		clients  []domain.Client
		expenses []domain.Expense
		st       *domain.Settings
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clients, err = s.clients.ListClients(gCtx, domain.ClientFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.expenses.ListExpenses(gCtx, domain.ExpenseFilter{From: domain.FormatDate(first), To: domain.FormatDate(last)})
		return err
	})
	g.Go(func() error {
		var err error
		st, err = s.settings.GetSettings(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := summarize(clients, expenses, now, st.ReminderWindow())
	d.GeneratedAt = s.now().Format(time.RFC3339)
	s.cache.Set(key, d)
	return d, nil
}

func summarize(clients []domain.Client, expenses []domain.Expense, now time.Time, window int) *domain.DashboardSummary {
	d := &domain.DashboardSummary{
		TotalClients:  len(clients),
		ByStatus:      map[domain.ClientStatus]int{},
		ExpensesByCat: map[string]domain.Money{},
		UpcomingDue:   []domain.Client{},
		Month:         now.Format("2006-01"),
	}
	for _, c := range clients {
		d.ByStatus[c.Status]++
		if c.Status != domain.StatusSuspended {
			d.ExpectedRevenue += c.AmountPaid
		}
		if c.Status == domain.StatusPaid {
			d.CollectedRevenue += c.AmountPaid
		}
		if c.Debt > 0 {
			d.TotalDebt += c.Debt
			d.ClientsWithDebt++
		}

		if c.Status == domain.StatusPaid {
			continue
		}
		due, err := domain.ParseDate(c.DueDate)
		if err != nil {
			continue
		}
		days := domain.DaysBetween(now, due)
		switch {
		case c.Status.MessagingCategory() == domain.CategoryOverdue || days < 0:
			d.OverdueCount++
		case days <= window:
			d.UpcomingDue = append(d.UpcomingDue, c)
		}
	}
	for _, e := range expenses {
		d.MonthExpenses += e.Amount
		d.ExpensesByCat[e.Category] += e.Amount
	}
	d.Net = d.CollectedRevenue - d.MonthExpenses
	return d
}

// MonthlyReport totals expenses per month of year. Zero means the current year.
func (s *ReportService) MonthlyReport(ctx context.Context, year int) (*domain.ExpenseReport, error) {
	ctx, span := tracer.Start(ctx, "ReportService.MonthlyReport")
	defer span.End()

	if year == 0 {
		year = s.now().Year()
	}
	if year < 2000 || year > 2100 {
		return nil, &domain.ErrValidation{Field: "year", Message: "must be between 2000 and 2100"}
	}
	key := fmt.Sprintf("expenses:%d", year)
	if cached, ok := s.cache.Get(key); ok {
		if r, ok := cached.(*domain.ExpenseReport); ok {
			s.metrics.IncrCacheHit("expense_report")
			return r, nil
		}
	}
	s.metrics.IncrCacheMiss("expense_report")

	expenses, err := s.expenses.ListExpenses(ctx, domain.ExpenseFilter{
		From: fmt.Sprintf("%d-01-01", year),
		To:   fmt.Sprintf("%d-12-31", year),
	})
	if err != nil {
		return nil, err
	}

	r := &domain.ExpenseReport{Year: year, Months: make([]domain.MonthlyExpenses, 12)}
	for i := range r.Months {
		r.Months[i] = domain.MonthlyExpenses{
			Month:      fmt.Sprintf("%d-%02d", year, i+1),
			ByCategory: map[string]domain.Money{},
		}
	}
	for _, e := range expenses {
		t, err := domain.ParseDate(e.Date)
		if err != nil || t.Year() != year {
			s.logger.Warn("expense with unusable date left out of report",
				zap.String("expense_id", e.ID),
				zap.String("date", e.Date),
			)
			continue
		}
		m := &r.Months[t.Month()-1]
		m.Total += e.Amount
		m.ByCategory[e.Category] += e.Amount
		r.Total += e.Amount
	}
	s.cache.Set(key, r)
	return r, nil
}
