package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
	"github.com/AzielCF/postpilot/scheduling/repository"
	"github.com/sirupsen/logrus"
)

// Publisher posts one instance's content to a single platform and returns
// the platform-side post ID.
type Publisher interface {
	Platform() platform.Platform
	Publish(ctx context.Context, instance common.PostInstance) (string, error)
}

// EventSink receives lifecycle events. Implementations must not block.
type EventSink interface {
	Emit(ctx context.Context, event common.InstanceEvent)
}

// noopSink lets the dispatcher run without any sink wired.
type noopSink struct{}

func (noopSink) Emit(context.Context, common.InstanceEvent) {}

// Dispatcher claims due instances and publishes them. Claiming is a
// compare-and-swap on the instance state, so concurrent dispatchers (or a
// dispatcher racing a cancel) settle on exactly one winner.
type Dispatcher struct {
	repo           repository.ILedgerRepository
	publishers     map[platform.Platform]Publisher
	sink           EventSink
	publishTimeout time.Duration
	now            func() time.Time
}

func NewDispatcher(repo repository.ILedgerRepository, publishers []Publisher, sink EventSink, publishTimeout time.Duration, now func() time.Time) *Dispatcher {
	if sink == nil {
		sink = noopSink{}
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if publishTimeout <= 0 {
		publishTimeout = 30 * time.Second
	}
	byPlatform := make(map[platform.Platform]Publisher, len(publishers))
	for _, p := range publishers {
		byPlatform[p.Platform()] = p
	}
	return &Dispatcher{
		repo:           repo,
		publishers:     byPlatform,
		sink:           sink,
		publishTimeout: publishTimeout,
		now:            now,
	}
}

// FindDue returns scheduled instances with occurrence_time in [from, to],
// ordered by occurrence time.
func (d *Dispatcher) FindDue(ctx context.Context, from, to time.Time) ([]common.PostInstance, error) {
	return d.repo.ListDueInstances(ctx, from, to)
}

// Dispatch claims the instance and publishes it to every target platform
// concurrently. The instance lands in published only when every platform
// succeeded; any error or timeout lands it in failed with per-platform
// results preserved. Returns false when the claim was lost (already
// claimed, cancelled, or gone).
func (d *Dispatcher) Dispatch(ctx context.Context, instanceID string) (bool, error) {
	claimed, err := d.repo.TransitionInstance(ctx, instanceID, common.InstanceStateScheduled, common.InstanceStateDispatching)
	if err != nil {
		return false, err
	}
	if !claimed {
		logrus.Debugf("[DISPATCHER] Instance %s not claimable, skipping", instanceID)
		return false, nil
	}

	instance, err := d.repo.GetInstance(ctx, instanceID)
	if err != nil {
		return false, err
	}

	results := d.publishAll(ctx, instance)

	allOK := true
	var failures []string
	for _, pf := range sortedPlatforms(results) {
		res := results[pf]
		if res.Status != common.PlatformResultSuccess {
			allOK = false
			failures = append(failures, fmt.Sprintf("%s: %s", pf, res.Reason))
		}
	}

	now := d.now()
	instance.Results = results
	instance.UpdatedAt = now

	finalState := common.InstanceStatePublished
	eventKind := common.EventInstancePublished
	if !allOK {
		finalState = common.InstanceStateFailed
		eventKind = common.EventInstanceFailed
		instance.ErrorMessage = strings.Join(failures, "; ")
	} else {
		instance.ErrorMessage = ""
	}
	instance.State = finalState

	if err := d.repo.UpdateInstance(ctx, instance); err != nil {
		return true, err
	}

	if allOK {
		logrus.Infof("[DISPATCHER] Instance %s published to %d platform(s)", instance.ID, len(results))
	} else {
		logrus.Warnf("[DISPATCHER] Instance %s failed: %s", instance.ID, instance.ErrorMessage)
	}

	d.sink.Emit(ctx, common.InstanceEvent{
		Kind:       eventKind,
		AccountID:  instance.AccountID,
		ParentID:   instance.ParentID,
		InstanceID: instance.ID,
		Instance:   &instance,
		OccurredAt: now,
	})
	return true, nil
}

// publishAll fans one instance out to its target platforms, one goroutine
// per platform, each bounded by the publish timeout.
func (d *Dispatcher) publishAll(ctx context.Context, instance common.PostInstance) map[platform.Platform]common.PlatformResult {
	results := make(map[platform.Platform]common.PlatformResult, len(instance.Platforms))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, pf := range instance.Platforms {
		pf := pf
		pub, ok := d.publishers[pf]
		if !ok {
			mu.Lock()
			results[pf] = common.PlatformResult{
				Status: common.PlatformResultError,
				Reason: "no publisher configured",
			}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
			defer cancel()

			postID, err := pub.Publish(callCtx, instance)

			result := common.PlatformResult{Status: common.PlatformResultSuccess, PostID: postID}
			if err != nil {
				var pubErr pkgError.PublishError
				switch {
				case errors.As(err, &pubErr):
					result = common.PlatformResult{
						Status:  common.PlatformResultError,
						Reason:  pubErr.Reason,
						Timeout: pubErr.Timeout,
					}
				case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
					result = common.PlatformResult{
						Status:  common.PlatformResultError,
						Reason:  fmt.Sprintf("publish timed out after %s", d.publishTimeout),
						Timeout: true,
					}
				default:
					result = common.PlatformResult{
						Status: common.PlatformResultError,
						Reason: err.Error(),
					}
				}
			}

			mu.Lock()
			results[pf] = result
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

// Cancel moves a scheduled instance to cancelled. Anything past scheduled
// (in flight, terminal) is refused.
func (d *Dispatcher) Cancel(ctx context.Context, accountID, instanceID string) (common.PostInstance, error) {
	instance, err := d.getOwned(ctx, accountID, instanceID)
	if err != nil {
		return common.PostInstance{}, err
	}

	moved, err := d.repo.TransitionInstance(ctx, instanceID, common.InstanceStateScheduled, common.InstanceStateCancelled)
	if err != nil {
		return common.PostInstance{}, err
	}
	if !moved {
		return common.PostInstance{}, pkgError.InvalidTransitionError(
			fmt.Sprintf("instance %s is %s, only scheduled instances can be cancelled.", instanceID, instance.State))
	}

	logrus.Infof("[DISPATCHER] Instance %s cancelled", instanceID)
	return d.repo.GetInstance(ctx, instanceID)
}

// Retry moves a failed instance back to scheduled for a fresh dispatch,
// clearing the previous attempt's results. This is the only operator-driven
// re-entry into the lifecycle.
func (d *Dispatcher) Retry(ctx context.Context, accountID, instanceID string) (common.PostInstance, error) {
	instance, err := d.getOwned(ctx, accountID, instanceID)
	if err != nil {
		return common.PostInstance{}, err
	}

	// State change and result clearing ride one conditional update. A
	// follow-up save here could rewind a dispatcher that claimed the
	// instance immediately after the swap.
	moved, err := d.repo.RetryInstance(ctx, instanceID)
	if err != nil {
		return common.PostInstance{}, err
	}
	if !moved {
		return common.PostInstance{}, pkgError.InvalidTransitionError(
			fmt.Sprintf("instance %s is %s, only failed instances can be retried.", instanceID, instance.State))
	}

	logrus.Infof("[DISPATCHER] Instance %s queued for retry", instanceID)
	return d.repo.GetInstance(ctx, instanceID)
}

func (d *Dispatcher) getOwned(ctx context.Context, accountID, instanceID string) (common.PostInstance, error) {
	instance, err := d.repo.GetInstance(ctx, instanceID)
	if err != nil {
		return common.PostInstance{}, err
	}
	if accountID != "" && instance.AccountID != accountID {
		return common.PostInstance{}, common.ErrInstanceNotFound
	}
	return instance, nil
}

func sortedPlatforms(results map[platform.Platform]common.PlatformResult) []platform.Platform {
	out := make([]platform.Platform, 0, len(results))
	for pf := range results {
		out = append(out, pf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
