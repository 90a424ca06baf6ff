package service

import (
	"context"
	"strings"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/observability"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"go.uber.org/zap"
)

const settingsCacheKey = "settings"

// SettingsService reads and writes the settings row through a TTL cache.
// A nil *domain.Settings means no row exists; its accessors yield the
// defaults (notifications off, 3-day window, WhatsApp).
type SettingsService struct {
	store   port.SettingsStore
	cache   port.Cache[*domain.Settings]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewSettingsService creates the settings service.
func NewSettingsService(store port.SettingsStore, cache port.Cache[*domain.Settings], metrics *observability.Metrics, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, cache: cache, metrics: metrics, logger: logger}
}

// Watch drops the cached row whenever the settings table changes.
func (s *SettingsService) Watch(feed port.ChangeFeed) (unsubscribe func()) {
	return feed.Subscribe(port.TableSettings, s.Invalidate)
}

// Invalidate drops the cached row.
func (s *SettingsService) Invalidate() {
	s.cache.Delete(settingsCacheKey)
}

// GetSettings returns the current settings, possibly nil.
func (s *SettingsService) GetSettings(ctx context.Context) (*domain.Settings, error) {
	ctx, span := tracer.Start(ctx, "SettingsService.GetSettings")
	defer span.End()

	if cached, ok := s.cache.Get(settingsCacheKey); ok {
		s.metrics.IncrCacheHit(settingsCacheKey)
		return cached, nil
	}
	s.metrics.IncrCacheMiss(settingsCacheKey)

	st, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(settingsCacheKey, st)
	return st, nil
}

// UpdateSettings validates and saves the settings row.
func (s *SettingsService) UpdateSettings(ctx context.Context, in domain.Settings) (*domain.Settings, error) {
	ctx, span := tracer.Start(ctx, "SettingsService.UpdateSettings")
	defer span.End()

	if in.PaymentReminderDays != nil && (*in.PaymentReminderDays < 0 || *in.PaymentReminderDays > 60) {
		return nil, &domain.ErrValidation{Field: "payment_reminder_days", Message: "must be between 0 and 60"}
	}
	if in.DefaultChannel != "" {
		ch, err := domain.ParseChannel(strings.ToLower(string(in.DefaultChannel)))
		if err != nil {
			return nil, &domain.ErrValidation{Field: "default_channel", Message: "must be 'whatsapp' or 'sms'"}
		}
		in.DefaultChannel = ch
	}
	in.CompanyName = strings.TrimSpace(in.CompanyName)

	saved, err := s.store.SaveSettings(ctx, &in)
	if err != nil {
		return nil, err
	}
	s.Invalidate()
	s.logger.Info("settings updated",
		zap.Bool("notifications_enabled", saved.NotificationsOn()),
		zap.Int("reminder_window_days", saved.ReminderWindow()),
		zap.String("channel", string(saved.Channel())),
	)
	return saved, nil
}
