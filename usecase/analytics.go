package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	domainAnalytics "github.com/AzielCF/postpilot/domains/analytics"
	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/application"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
	"github.com/AzielCF/postpilot/scheduling/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type metricSnapshotModel struct {
	ID          string    `gorm:"primaryKey"`
	AccountID   string    `gorm:"column:account_id;not null;index:idx_account_platform"`
	Platform    string    `gorm:"column:platform;not null;index:idx_account_platform"`
	Followers   int       `gorm:"column:followers"`
	Impressions int       `gorm:"column:impressions"`
	Engagement  float64   `gorm:"column:engagement"`
	CapturedAt  time.Time `gorm:"column:captured_at;not null;index"`
}

func (metricSnapshotModel) TableName() string { return "metric_snapshots" }

type serviceAnalytics struct {
	db             *gorm.DB
	ledgerRepo     repository.ILedgerRepository
	sink           application.EventSink
	threshold      float64
	reminderWindow time.Duration
	now            func() time.Time

	remindedMu sync.Mutex
	reminded   map[string]time.Time // instanceID -> occurrence reminded for

	alertedMu sync.Mutex
	alerted   map[string]string // accountID|platform -> latest snapshot ID already alerted
}

func NewAnalyticsService(
	db *gorm.DB,
	ledgerRepo repository.ILedgerRepository,
	sink application.EventSink,
	threshold float64,
	reminderWindow time.Duration,
	now func() time.Time,
) (domainAnalytics.IAnalyticsUsecase, error) {
	if err := db.AutoMigrate(&metricSnapshotModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate metric snapshots: %w", err)
	}
	if threshold <= 0 {
		threshold = 20.0
	}
	if reminderWindow <= 0 {
		reminderWindow = time.Hour
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &serviceAnalytics{
		db:             db,
		ledgerRepo:     ledgerRepo,
		sink:           sink,
		threshold:      threshold,
		reminderWindow: reminderWindow,
		now:            now,
		reminded:       make(map[string]time.Time),
		alerted:        make(map[string]string),
	}, nil
}

func (service *serviceAnalytics) Record(ctx context.Context, request domainAnalytics.RecordSnapshotRequest) (domainAnalytics.MetricSnapshot, error) {
	if request.AccountID == "" {
		return domainAnalytics.MetricSnapshot{}, pkgError.ValidationError("account_id: cannot be blank.")
	}
	pf, ok := platform.Parse(request.Platform)
	if !ok {
		return domainAnalytics.MetricSnapshot{}, pkgError.ValidationError(fmt.Sprintf("platform: unknown platform %q.", request.Platform))
	}

	model := metricSnapshotModel{
		ID:          uuid.NewString(),
		AccountID:   request.AccountID,
		Platform:    string(pf),
		Followers:   request.Followers,
		Impressions: request.Impressions,
		Engagement:  request.Engagement,
		CapturedAt:  service.now(),
	}
	if err := service.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domainAnalytics.MetricSnapshot{}, err
	}
	return toSnapshot(model), nil
}

func (service *serviceAnalytics) Summary(ctx context.Context, accountID string) ([]domainAnalytics.PlatformSummary, error) {
	if accountID == "" {
		return nil, pkgError.ValidationError("account_id: cannot be blank.")
	}

	var summaries []domainAnalytics.PlatformSummary
	for _, pf := range platform.All() {
		latest, previous, err := service.lastTwo(ctx, accountID, string(pf))
		if err != nil {
			return nil, err
		}
		if latest == nil {
			continue
		}

		summary := domainAnalytics.PlatformSummary{
			Platform: string(pf),
			Latest:   toSnapshot(*latest),
		}
		if previous != nil {
			summary.FollowersDelta = percentChange(float64(previous.Followers), float64(latest.Followers))
			summary.ImpressionsDelta = percentChange(float64(previous.Impressions), float64(latest.Impressions))
			summary.EngagementDelta = percentChange(previous.Engagement, latest.Engagement)
			summary.PreviousCapturedAt = previous.CapturedAt
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// RunWatcher compares the two most recent snapshots per account/platform
// and raises analytics alerts for swings past the threshold, then emits
// reminders for instances due inside the reminder window.
func (service *serviceAnalytics) RunWatcher(ctx context.Context) error {
	if err := service.checkMetricSwings(ctx); err != nil {
		return err
	}
	return service.emitUpcomingReminders(ctx)
}

func (service *serviceAnalytics) checkMetricSwings(ctx context.Context) error {
	type pair struct {
		AccountID string
		Platform  string
	}
	var pairs []pair
	err := service.db.WithContext(ctx).
		Model(&metricSnapshotModel{}).
		Distinct("account_id", "platform").
		Find(&pairs).Error
	if err != nil {
		return err
	}

	now := service.now()
	for _, p := range pairs {
		latest, previous, err := service.lastTwo(ctx, p.AccountID, p.Platform)
		if err != nil {
			return err
		}
		if latest == nil || previous == nil {
			continue
		}

		// One alert pass per snapshot pair: re-running the watcher before
		// a new snapshot arrives must not repeat the same alert.
		pairKey := p.AccountID + "|" + p.Platform
		service.alertedMu.Lock()
		alreadyAlerted := service.alerted[pairKey] == latest.ID
		service.alertedMu.Unlock()
		if alreadyAlerted {
			continue
		}

		fired := false
		for metric, delta := range map[string]float64{
			"followers":   percentChange(float64(previous.Followers), float64(latest.Followers)),
			"impressions": percentChange(float64(previous.Impressions), float64(latest.Impressions)),
			"engagement":  percentChange(previous.Engagement, latest.Engagement),
		} {
			if math.Abs(delta) < service.threshold {
				continue
			}
			logrus.Warnf("[ANALYTICS] %s/%s %s moved %.1f%% since %s",
				p.AccountID, p.Platform, metric, delta, previous.CapturedAt.Format(time.RFC3339))
			service.sink.Emit(ctx, common.InstanceEvent{
				Kind:       common.EventAnalyticsAlert,
				AccountID:  p.AccountID,
				OccurredAt: now,
			})
			fired = true
		}
		if fired {
			service.alertedMu.Lock()
			service.alerted[pairKey] = latest.ID
			service.alertedMu.Unlock()
		}
	}
	return nil
}

func (service *serviceAnalytics) emitUpcomingReminders(ctx context.Context) error {
	now := service.now()
	due, err := service.ledgerRepo.ListDueInstances(ctx, now, now.Add(service.reminderWindow))
	if err != nil {
		return err
	}

	service.remindedMu.Lock()
	defer service.remindedMu.Unlock()

	// Evict reminders for occurrences already in the past.
	for id, occurrence := range service.reminded {
		if occurrence.Before(now) {
			delete(service.reminded, id)
		}
	}

	for _, instance := range due {
		if at, ok := service.reminded[instance.ID]; ok && at.Equal(instance.OccurrenceTime) {
			continue
		}
		service.reminded[instance.ID] = instance.OccurrenceTime

		instance := instance
		service.sink.Emit(ctx, common.InstanceEvent{
			Kind:       common.EventPostUpcoming,
			AccountID:  instance.AccountID,
			ParentID:   instance.ParentID,
			InstanceID: instance.ID,
			Instance:   &instance,
			OccurredAt: now,
		})
	}
	return nil
}

func (service *serviceAnalytics) lastTwo(ctx context.Context, accountID, pf string) (latest, previous *metricSnapshotModel, err error) {
	var models []metricSnapshotModel
	err = service.db.WithContext(ctx).
		Where("account_id = ? AND platform = ?", accountID, pf).
		Order("captured_at DESC").
		Limit(2).
		Find(&models).Error
	if err != nil {
		return nil, nil, err
	}
	if len(models) > 0 {
		latest = &models[0]
	}
	if len(models) > 1 {
		previous = &models[1]
	}
	return latest, previous, nil
}

func toSnapshot(m metricSnapshotModel) domainAnalytics.MetricSnapshot {
	return domainAnalytics.MetricSnapshot{
		ID:          m.ID,
		AccountID:   m.AccountID,
		Platform:    m.Platform,
		Followers:   m.Followers,
		Impressions: m.Impressions,
		Engagement:  m.Engagement,
		CapturedAt:  m.CapturedAt,
	}
}

func percentChange(previous, current float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return (current - previous) / math.Abs(previous) * 100
}
