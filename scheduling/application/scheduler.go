package application

import (
	"context"
	"fmt"
	"time"

	"github.com/AzielCF/postpilot/infrastructure/valkey"
	"github.com/AzielCF/postpilot/pkg/pubworker"
	"github.com/AzielCF/postpilot/scheduling/repository"
	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"
)

// Scheduler drives dispatch of due instances. The database is the source of
// truth; Valkey adds a reactive layer: a ZSET of promoted instances keyed by
// occurrence time, NX locks against duplicate execution across processes,
// and a pub/sub wake channel so new near-term posts dispatch without waiting
// for the next tick. Without Valkey the scheduler degrades to plain polling.
type Scheduler struct {
	repo         repository.ILedgerRepository
	valkeyClient *valkey.Client
	dispatcher   *Dispatcher
	pool         *pubworker.PublishWorkerPool
	lookahead    time.Duration
	now          func() time.Time

	wakeCh chan struct{}
}

func NewScheduler(
	repo repository.ILedgerRepository,
	vk *valkey.Client,
	dispatcher *Dispatcher,
	pool *pubworker.PublishWorkerPool,
	lookahead time.Duration,
	now func() time.Time,
) *Scheduler {
	if lookahead <= 0 {
		lookahead = 5 * time.Minute
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{
		repo:         repo,
		valkeyClient: vk,
		dispatcher:   dispatcher,
		pool:         pool,
		lookahead:    lookahead,
		now:          now,
		wakeCh:       make(chan struct{}, 1),
	}
}

// StartLoop launches the background worker.
func (s *Scheduler) StartLoop(ctx context.Context) {
	if s.valkeyClient == nil {
		logrus.Warn("[SCHEDULER] Valkey disabled. Falling back to database polling.")
		go s.runPollingWorker(ctx)
		return
	}

	signalChan := s.valkeyClient.Key("scheduler:signal")
	logrus.Infof("[SCHEDULER] Reactive worker started. Watching channel %s", signalChan)

	go func() {
		err := s.valkeyClient.Inner().Receive(ctx, s.valkeyClient.Inner().B().Subscribe().Channel(signalChan).Build(), func(msg valkeylib.PubSubMessage) {
			logrus.Debug("[SCHEDULER] Wake-up signal received from Valkey")
			s.wakeLocal()
		})
		if err != nil && ctx.Err() == nil {
			logrus.WithError(err).Error("[SCHEDULER] Pub/Sub listener failed")
		}
	}()

	go s.runWorker(ctx)
}

// Wake nudges the scheduler after a write that may have produced near-term
// instances. With Valkey the signal reaches every process.
func (s *Scheduler) Wake(ctx context.Context) {
	if s.valkeyClient != nil {
		if err := s.valkeyClient.Signal(ctx, "scheduler:signal"); err != nil {
			logrus.WithError(err).Debug("[SCHEDULER] Wake signal publish failed")
		}
		return
	}
	s.wakeLocal()
}

func (s *Scheduler) wakeLocal() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) runWorker(ctx context.Context) {
	// Initial hydration
	if err := s.PromoteDue(ctx); err != nil {
		logrus.WithError(err).Error("[SCHEDULER] Initial promotion failed")
	}

	safetyTicker := time.NewTicker(5 * time.Minute)
	defer safetyTicker.Stop()

	for {
		nextDueAt := s.ExecDue(ctx)

		sleepDuration := 1 * time.Hour
		if !nextDueAt.IsZero() {
			sleepDuration = time.Until(nextDueAt)
			if sleepDuration < 0 {
				sleepDuration = 1 * time.Second
			}
			if sleepDuration > 1*time.Hour {
				sleepDuration = 1 * time.Hour
			}
		}

		adaptiveTimer := time.NewTimer(sleepDuration)
		select {
		case <-ctx.Done():
			adaptiveTimer.Stop()
			return
		case <-s.wakeCh:
			adaptiveTimer.Stop()
			if err := s.PromoteDue(ctx); err != nil {
				logrus.WithError(err).Error("[SCHEDULER] Promotion after wake failed")
			}
		case <-safetyTicker.C:
			adaptiveTimer.Stop()
			if err := s.PromoteDue(ctx); err != nil {
				logrus.WithError(err).Error("[SCHEDULER] Periodic promotion failed")
			}
		case <-adaptiveTimer.C:
		}
	}
}

// runPollingWorker is the Valkey-less fallback: scan the database on a fixed
// interval and hand due instances straight to the pool.
func (s *Scheduler) runPollingWorker(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	s.execFromDatabase(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wakeCh:
			s.execFromDatabase(ctx)
		case <-ticker.C:
			s.execFromDatabase(ctx)
		}
	}
}

func (s *Scheduler) execFromDatabase(ctx context.Context) {
	now := s.now()
	due, err := s.dispatcher.FindDue(ctx, now.Add(-s.lookahead), now)
	if err != nil {
		logrus.WithError(err).Error("[SCHEDULER] Due scan failed")
		return
	}
	for _, instance := range due {
		s.enqueue(instance.ParentID, instance.ID)
	}
}

// PromoteDue scans the database for scheduled instances inside the lookahead
// window and loads them into the Valkey ZSET. Guarded by an NX lock so only
// one process promotes per interval.
func (s *Scheduler) PromoteDue(ctx context.Context) error {
	if s.valkeyClient == nil {
		return nil
	}

	if !s.valkeyClient.AcquireLock(ctx, "lock:scheduler:promo", 55*time.Second) {
		return nil
	}

	now := s.now()
	due, err := s.repo.ListDueInstances(ctx, now.Add(-24*time.Hour), now.Add(s.lookahead))
	if err != nil {
		return err
	}

	key := s.valkeyClient.Key("scheduler:due")
	for _, instance := range due {
		score := float64(instance.OccurrenceTime.Unix())
		member := instance.ParentID + "|" + instance.ID
		_ = s.valkeyClient.Inner().Do(ctx, s.valkeyClient.Inner().B().Zadd().Key(key).ScoreMember().ScoreMember(score, member).Build())
	}
	if len(due) > 0 {
		logrus.Debugf("[SCHEDULER] Promoted %d instance(s) into the due set", len(due))
	}
	return nil
}

// ExecDue hands matured instances to the worker pool and returns the
// occurrence time of the next pending one, for the adaptive timer.
func (s *Scheduler) ExecDue(ctx context.Context) time.Time {
	key := s.valkeyClient.Key("scheduler:due")
	now := float64(s.now().Unix())

	res := s.valkeyClient.Inner().Do(ctx, s.valkeyClient.Inner().B().Zrangebyscore().Key(key).Min("-inf").Max(fmt.Sprintf("%f", now)).Build())
	members, err := res.AsStrSlice()

	if err == nil && len(members) > 0 {
		for _, member := range members {
			parentID, instanceID := splitDueMember(member)
			if instanceID == "" {
				_ = s.valkeyClient.Inner().Do(ctx, s.valkeyClient.Inner().B().Zrem().Key(key).Member(member).Build())
				continue
			}

			if !s.valkeyClient.AcquireLock(ctx, "lock:exec:"+instanceID, 30*time.Second) {
				continue
			}

			s.enqueue(parentID, instanceID)
			// The dispatch CAS makes a second enqueue harmless, so the
			// member can be removed as soon as the job is handed over.
			_ = s.valkeyClient.Inner().Do(ctx, s.valkeyClient.Inner().B().Zrem().Key(key).Member(member).Build())
		}
	}

	// Peek the next pending member for the adaptive sleep.
	cmdPeek := s.valkeyClient.Inner().B().Zrangebyscore().Key(key).Min("-inf").Max("+inf").Limit(0, 1).Build()
	peekRes, _ := s.valkeyClient.Inner().Do(ctx, cmdPeek).AsStrSlice()

	if len(peekRes) > 0 && peekRes[0] != "" {
		member := peekRes[0]
		score, err := s.valkeyClient.Inner().Do(ctx, s.valkeyClient.Inner().B().Zscore().Key(key).Member(member).Build()).AsFloat64()
		if err == nil {
			return time.Unix(int64(score), 0)
		}
	}

	return time.Time{}
}

func (s *Scheduler) enqueue(parentID, instanceID string) {
	job := pubworker.PublishJob{
		ParentID:   parentID,
		InstanceID: instanceID,
		Handler: func(jobCtx context.Context) error {
			_, err := s.dispatcher.Dispatch(jobCtx, instanceID)
			return err
		},
	}
	if s.pool != nil {
		if !s.pool.TryDispatch(job) {
			logrus.Warnf("[SCHEDULER] Pool saturated, instance %s deferred to next pass", instanceID)
		}
		return
	}
	// No pool wired (tests): run inline.
	if err := job.Handler(context.Background()); err != nil {
		logrus.WithError(err).Errorf("[SCHEDULER] Inline dispatch failed for %s", instanceID)
	}
}

// CountPendingDue returns the number of instances currently promoted into
// the Valkey due set.
func (s *Scheduler) CountPendingDue(ctx context.Context) int64 {
	if s.valkeyClient == nil {
		return 0
	}
	key := s.valkeyClient.Key("scheduler:due")
	res, err := s.valkeyClient.Inner().Do(ctx, s.valkeyClient.Inner().B().Zcard().Key(key).Build()).AsInt64()
	if err != nil {
		return 0
	}
	return res
}

func splitDueMember(member string) (parentID, instanceID string) {
	for i := 0; i < len(member); i++ {
		if member[i] == '|' {
			return member[:i], member[i+1:]
		}
	}
	return "", member
}
