package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/billing"
	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/observability"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// scanMode selects the passes a scan runs.
type scanMode struct {
	rollover  bool
	reminders bool
}

// ScanService is the periodic billing scan: every client is evaluated
// independently, changes are persisted one update-by-id each, and reminders
// are dispatched. A bad record is skipped and reported, never fatal.
type ScanService struct {
	clients     port.ClientStore
	settings    *SettingsService
	notifier    *NotificationService
	audit       auditor
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         Clock
	concurrency int
	running     atomic.Bool
}

// NewScanService creates the scan service. concurrency bounds how many
// clients are processed at once.
func NewScanService(
	clients port.ClientStore,
	messages port.MessageStore,
	settings *SettingsService,
	notifier *NotificationService,
	metrics *observability.Metrics,
	logger *zap.Logger,
	now Clock,
	concurrency int,
) *ScanService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ScanService{
		clients:     clients,
		settings:    settings,
		notifier:    notifier,
		audit:       auditor{messages: messages, metrics: metrics, logger: logger},
		metrics:     metrics,
		logger:      logger,
		now:         now,
		concurrency: concurrency,
	}
}

// RunScan runs the cycle rollover and then the reminder pass.
func (s *ScanService) RunScan(ctx context.Context) (*domain.ScanReport, error) {
	return s.run(ctx, "RunScan", scanMode{rollover: true, reminders: true})
}

// RunRollover only starts new billing cycles (the hourly job).
func (s *ScanService) RunRollover(ctx context.Context) (*domain.ScanReport, error) {
	return s.run(ctx, "RunRollover", scanMode{rollover: true})
}

// RunReminders only dispatches reminders (the daily job).
func (s *ScanService) RunReminders(ctx context.Context) (*domain.ScanReport, error) {
	return s.run(ctx, "RunReminders", scanMode{reminders: true})
}

func (s *ScanService) run(ctx context.Context, name string, mode scanMode) (*domain.ScanReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, &domain.ErrConflict{Message: "a billing scan is already running"}
	}
	defer s.running.Store(false)

	ctx, span := tracer.Start(ctx, "ScanService."+name)
	defer span.End()

	now := s.now()
	report := &domain.ScanReport{
		StartedAt:       now.Format(time.RFC3339),
		Skipped:         []domain.ScanSkip{},
		Inconsistencies: []domain.ScanSkip{},
	}

	// Settings are read once per scan.
	var st *domain.Settings
	if mode.reminders {
		var err error
		if st, err = s.settings.GetSettings(ctx); err != nil {
			return nil, err
		}
		if !st.NotificationsOn() {
			mode.reminders = false
			s.logger.Info("scan: notifications disabled, reminder pass skipped")
		}
	}

	clients, err := s.clients.ListClients(ctx, domain.ClientFilter{})
	if err != nil {
		countExternal(s.metrics, err)
		return nil, err
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for _, c := range clients {
		c := c
		g.Go(func() error {
			out := s.processClient(ctx, c, now, st, mode)
			mu.Lock()
			out.addTo(report)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Evaluated = len(clients)
	sortSkips(report.Skipped)
	sortSkips(report.Inconsistencies)
	sort.Slice(report.Reminders, func(i, j int) bool { return report.Reminders[i].ClientID < report.Reminders[j].ClientID })
	report.FinishedAt = s.now().Format(time.RFC3339)

	s.metrics.RecordScan(report.Evaluated, report.Updated, len(report.Skipped))
	span.SetAttributes(
		attribute.Int("scan.evaluated", report.Evaluated),
		attribute.Int("scan.updated", report.Updated),
		attribute.Int("scan.skipped", len(report.Skipped)),
		attribute.Int("scan.reminders_sent", report.RemindersSent),
	)
	s.logger.Info("scan finished",
		zap.String("scan", name),
		zap.Int("evaluated", report.Evaluated),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("reminders_sent", report.RemindersSent),
		zap.Int("reminders_failed", report.RemindersFailed),
		zap.Int("inconsistencies", len(report.Inconsistencies)),
	)
	return report, ctx.Err()
}

// clientOutcome is what one client contributed to the report.
type clientOutcome struct {
	updated      bool
	skip         *domain.ScanSkip
	reminder     *domain.DispatchResult
	inconsistent *domain.ScanSkip
}

func (o clientOutcome) addTo(r *domain.ScanReport) {
	if o.updated {
		r.Updated++
	}
	if o.skip != nil {
		r.Skipped = append(r.Skipped, *o.skip)
	}
	if o.reminder != nil {
		r.Reminders = append(r.Reminders, *o.reminder)
		if o.reminder.Status == domain.DeliverySent {
			r.RemindersSent++
		} else {
			r.RemindersFailed++
		}
	}
	if o.inconsistent != nil {
		r.Inconsistencies = append(r.Inconsistencies, *o.inconsistent)
	}
}

func (s *ScanService) processClient(ctx context.Context, c domain.Client, now time.Time, st *domain.Settings, mode scanMode) clientOutcome {
	var out clientOutcome
	if ctx.Err() != nil {
		out.skip = &domain.ScanSkip{ClientID: c.ID, Reason: ctx.Err().Error()}
		return out
	}

	if mode.rollover {
		t, ok, err := billing.EvaluateRollover(c, now)
		if err != nil {
			out.skip = s.skip(c.ID, err)
			return out
		}
		if ok {
			updated, err := s.clients.UpdateClient(ctx, c.ID, t.Update())
			if err != nil {
				out.skip = s.skip(c.ID, err)
				return out
			}
			out.updated = true
			s.audit.record(ctx, c.ID, describeTransition(c, t))
			c = *updated
		}
	}

	if !mode.reminders || remindedOn(c, now) {
		return out
	}
	kind, err := billing.ShouldRemind(c, now, st.ReminderWindow())
	if err != nil {
		out.skip = s.skip(c.ID, err)
		return out
	}
	if kind == domain.ReminderNone {
		return out
	}

	res, err := s.notifier.Dispatch(ctx, c, kind, st.Channel(), st)
	out.reminder = &res
	var inc *domain.ErrDeliveryInconsistency
	if errors.As(err, &inc) {
		out.inconsistent = &domain.ScanSkip{ClientID: c.ID, Reason: inc.Error()}
	}
	return out
}

func (s *ScanService) skip(clientID string, err error) *domain.ScanSkip {
	countExternal(s.metrics, err)
	s.logger.Warn("scan: client skipped",
		zap.String("client_id", clientID),
		zap.Error(err),
	)
	return &domain.ScanSkip{ClientID: clientID, Reason: err.Error()}
}

func sortSkips(skips []domain.ScanSkip) {
	sort.Slice(skips, func(i, j int) bool { return skips[i].ClientID < skips[j].ClientID })
}
