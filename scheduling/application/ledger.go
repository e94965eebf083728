package application

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
	"github.com/AzielCF/postpilot/scheduling/expander"
	"github.com/AzielCF/postpilot/scheduling/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// countHorizonCap bounds the expansion window of a count-based horizon so a
// sparse rule (say, every 29th of February) cannot make materialization
// scan unbounded time.
const countHorizonCap = 2 * 366 * 24 * time.Hour

// DeleteScope selects the reach of a delete operation.
type DeleteScope string

const (
	// DeleteFutureOnly removes scheduled future instances and keeps the
	// parent with its history; the series is closed, not erased.
	DeleteFutureOnly DeleteScope = "future_only"
	// DeleteAll removes the parent and every instance regardless of state.
	// Destroying history is the explicit meaning of "delete all" here.
	DeleteAll DeleteScope = "all"
)

// PostUpdates carries an edit. Nil pointer fields are untouched; nil slices
// mean unchanged, empty slices are rejected upstream by validation.
type PostUpdates struct {
	Content         *string
	MediaRefs       []string
	Platforms       []platform.Platform
	FirstOccurrence *time.Time
	Recurrence      *common.RecurrenceRule
	ClearRecurrence bool
	Horizon         *common.HorizonPolicy
}

// TouchesTiming reports whether the edit changes the recurrence rule or the
// first occurrence, which forces future instances to be rebuilt.
func (u PostUpdates) TouchesTiming() bool {
	return u.FirstOccurrence != nil || u.Recurrence != nil || u.ClearRecurrence
}

// Ledger owns scheduled posts and their materialized instances and enforces
// the lifecycle invariants. All mutations against one parent are serialized
// through a per-parent mutex; multi-row writes run inside a repository
// transaction.
type Ledger struct {
	repo  repository.ILedgerRepository
	now   func() time.Time
	locks sync.Map // parentID -> *sync.Mutex

	defaultHorizon common.HorizonPolicy
}

func NewLedger(repo repository.ILedgerRepository, now func() time.Time, defaultHorizon common.HorizonPolicy) *Ledger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{
		repo:           repo,
		now:            now,
		defaultHorizon: defaultHorizon,
	}
}

func (l *Ledger) lock(parentID string) func() {
	muIface, _ := l.locks.LoadOrStore(parentID, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreatePost persists the parent and materializes instances up to the
// horizon. The post is expected to be validated already.
func (l *Ledger) CreatePost(ctx context.Context, post common.ScheduledPost) (common.ScheduledPost, error) {
	now := l.now()
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.Horizon.Value <= 0 {
		post.Horizon = l.defaultHorizon
	}
	post.FirstOccurrence = post.FirstOccurrence.UTC()
	post.EmittedCount = 0
	post.CreatedAt = now
	post.UpdatedAt = now

	err := l.repo.WithTx(ctx, func(tx repository.ILedgerRepository) error {
		if err := tx.CreatePost(ctx, post); err != nil {
			return err
		}
		materialized, err := l.materialize(ctx, tx, &post, post.FirstOccurrence)
		if err != nil {
			return err
		}
		if materialized > 0 {
			return tx.UpdatePost(ctx, post)
		}
		return nil
	})
	if err != nil {
		return common.ScheduledPost{}, err
	}

	logrus.Infof("[LEDGER] Created post %s (%d instances materialized)", post.ID, post.EmittedCount)
	return post, nil
}

// EditPost applies updates to a parent. Content-only edits propagate to
// every non-terminal instance in place; edits that touch the rule or the
// first occurrence drop scheduled future instances and rebuild them from
// now forward. History (published, failed, dispatching) is never rewritten.
func (l *Ledger) EditPost(ctx context.Context, accountID, id string, updates PostUpdates) (common.ScheduledPost, error) {
	unlock := l.lock(id)
	defer unlock()

	post, err := l.repo.GetPost(ctx, accountID, id)
	if err != nil {
		return common.ScheduledPost{}, err
	}

	now := l.now()
	applyContentUpdates(&post, updates)
	post.UpdatedAt = now

	if !updates.TouchesTiming() {
		err = l.repo.WithTx(ctx, func(tx repository.ILedgerRepository) error {
			if err := tx.UpdatePost(ctx, post); err != nil {
				return err
			}
			instances, err := tx.ListNonTerminalInstances(ctx, post.ID)
			if err != nil {
				return err
			}
			for _, inst := range instances {
				inst.Content = post.Content
				inst.MediaRefs = post.MediaRefs
				inst.Platforms = post.Platforms
				inst.UpdatedAt = now
				if err := tx.UpdateInstance(ctx, inst); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return common.ScheduledPost{}, err
		}
		return post, nil
	}

	// Timing change: the rule version that generated the old scheduled
	// instances no longer applies, so they are rebuilt from now forward.
	if updates.FirstOccurrence != nil {
		post.FirstOccurrence = updates.FirstOccurrence.UTC()
	}
	if updates.ClearRecurrence {
		post.Recurrence = nil
	} else if updates.Recurrence != nil {
		post.Recurrence = updates.Recurrence
	}
	// Request validation cannot see the stored first occurrence on a
	// rule-only edit, so the end-date check lives here against the post
	// the rule will actually apply to.
	if post.Recurrence != nil && post.Recurrence.End.Kind == common.EndOnDate &&
		post.Recurrence.End.Date != nil && post.Recurrence.End.Date.Before(post.FirstOccurrence) {
		return common.ScheduledPost{}, pkgError.ValidationError("recurrence: end date cannot be before the first occurrence.")
	}
	// A replaced rule starts its own emission count.
	post.EmittedCount = 0

	err = l.repo.WithTx(ctx, func(tx repository.ILedgerRepository) error {
		if _, err := tx.DeleteScheduledFrom(ctx, post.ID, now); err != nil {
			return err
		}
		from := post.FirstOccurrence
		if from.Before(now) {
			from = now
		}
		if _, err := l.materialize(ctx, tx, &post, from); err != nil {
			return err
		}
		return tx.UpdatePost(ctx, post)
	})
	if err != nil {
		return common.ScheduledPost{}, err
	}

	logrus.Infof("[LEDGER] Rebuilt instances for post %s after timing edit", post.ID)
	return post, nil
}

// DeletePost removes a series. future_only keeps the parent and its history;
// all cascades to every instance regardless of state.
func (l *Ledger) DeletePost(ctx context.Context, accountID, id string, scope DeleteScope) error {
	unlock := l.lock(id)
	defer unlock()

	post, err := l.repo.GetPost(ctx, accountID, id)
	if err != nil {
		return err
	}

	switch scope {
	case DeleteFutureOnly:
		removed, err := l.repo.DeleteScheduledFrom(ctx, post.ID, l.now())
		if err != nil {
			return err
		}
		logrus.Infof("[LEDGER] Closed series %s (%d scheduled instances removed)", post.ID, removed)
		return nil
	case DeleteAll:
		return l.repo.WithTx(ctx, func(tx repository.ILedgerRepository) error {
			if err := tx.DeleteInstancesByParent(ctx, post.ID); err != nil {
				return err
			}
			return tx.DeletePost(ctx, post.ID)
		})
	default:
		return pkgError.ValidationError("scope: must be future_only or all.")
	}
}

// ExtendHorizon tops the series up to its horizon policy, resuming just
// past the latest materialized occurrence. The horizon is anchored at now:
// a days horizon covers [now, now+N days], a count horizon keeps N pending
// occurrences materialized. Idempotent when no time has passed.
func (l *Ledger) ExtendHorizon(ctx context.Context, accountID, id string) (int, error) {
	unlock := l.lock(id)
	defer unlock()

	post, err := l.repo.GetPost(ctx, accountID, id)
	if err != nil {
		return 0, err
	}
	if !post.IsRecurring() {
		return 0, nil
	}

	now := l.now()
	instances, err := l.repo.ListInstances(ctx, post.ID)
	if err != nil {
		return 0, err
	}

	pending := 0
	var latest time.Time
	for _, inst := range instances {
		if inst.OccurrenceTime.After(latest) {
			latest = inst.OccurrenceTime
		}
		if inst.State == common.InstanceStateScheduled && !inst.OccurrenceTime.Before(now) {
			pending++
		}
	}

	from := now
	if latest.After(from) {
		// The boundary occurrence is already materialized; resume just
		// past it. The (parent_id, occurrence_time) unique index still
		// backstops any overlap.
		from = latest.Add(time.Nanosecond)
	}

	var win expander.Window
	maxCount := 0
	switch post.Horizon.Kind {
	case common.HorizonByCount:
		maxCount = post.Horizon.Value - pending
		if maxCount <= 0 {
			return 0, nil
		}
		win = expander.Window{Start: from, End: from.Add(countHorizonCap)}
	default:
		win = expander.Window{Start: from, End: now.AddDate(0, 0, post.Horizon.Value)}
		if !win.End.After(win.Start) {
			return 0, nil
		}
	}

	var materialized int
	err = l.repo.WithTx(ctx, func(tx repository.ILedgerRepository) error {
		n, err := l.materializeWindow(ctx, tx, &post, win, maxCount)
		if err != nil {
			return err
		}
		materialized = n
		if n > 0 {
			return tx.UpdatePost(ctx, post)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return materialized, nil
}

func (l *Ledger) GetPost(ctx context.Context, accountID, id string) (common.ScheduledPost, error) {
	return l.repo.GetPost(ctx, accountID, id)
}

func (l *Ledger) ListPosts(ctx context.Context, accountID string) ([]common.ScheduledPost, error) {
	return l.repo.ListPosts(ctx, accountID)
}

func (l *Ledger) ListInstances(ctx context.Context, accountID, parentID string) ([]common.PostInstance, error) {
	if _, err := l.repo.GetPost(ctx, accountID, parentID); err != nil {
		return nil, err
	}
	return l.repo.ListInstances(ctx, parentID)
}

// ListRecurringPosts feeds the horizon maintenance job.
func (l *Ledger) ListRecurringPosts(ctx context.Context) ([]common.ScheduledPost, error) {
	return l.repo.ListRecurringPosts(ctx)
}

// materialize expands the post's rule within [from, horizon end] and inserts
// the resulting instances.
func (l *Ledger) materialize(ctx context.Context, tx repository.ILedgerRepository, post *common.ScheduledPost, from time.Time) (int, error) {
	win, maxCount := l.horizonWindow(post, from)
	return l.materializeWindow(ctx, tx, post, win, maxCount)
}

// materializeWindow expands the rule within win, inserting up to maxCount
// instances (0 means unbounded). Duplicate occurrences (concurrent
// extension races) are swallowed as no-ops and not counted. The parent's
// EmittedCount is advanced by the number of rows actually inserted; the
// caller persists the parent.
func (l *Ledger) materializeWindow(ctx context.Context, tx repository.ILedgerRepository, post *common.ScheduledPost, win expander.Window, maxCount int) (int, error) {
	exp := expander.New(post.Recurrence, post.FirstOccurrence, win, post.EmittedCount)

	now := l.now()
	inserted := 0
	for {
		if maxCount > 0 && inserted >= maxCount {
			break
		}
		occurrence, ok := exp.Next()
		if !ok {
			break
		}
		instance := common.PostInstance{
			ID:             uuid.NewString(),
			ParentID:       post.ID,
			AccountID:      post.AccountID,
			Content:        post.Content,
			MediaRefs:      post.MediaRefs,
			Platforms:      post.Platforms,
			OccurrenceTime: occurrence,
			State:          common.InstanceStateScheduled,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateInstance(ctx, instance); err != nil {
			var conflict pkgError.ConflictError
			if errors.As(err, &conflict) {
				continue
			}
			return inserted, err
		}
		inserted++
	}
	post.EmittedCount += inserted
	return inserted, nil
}

// horizonWindow translates the horizon policy into an expansion window and,
// for count-based horizons, a per-pass occurrence cap.
func (l *Ledger) horizonWindow(post *common.ScheduledPost, from time.Time) (expander.Window, int) {
	if !post.IsRecurring() {
		return expander.Window{Start: from, End: post.FirstOccurrence}, 0
	}
	switch post.Horizon.Kind {
	case common.HorizonByCount:
		return expander.Window{Start: from, End: from.Add(countHorizonCap)}, post.Horizon.Value
	default:
		return expander.Window{Start: from, End: from.AddDate(0, 0, post.Horizon.Value)}, 0
	}
}

func applyContentUpdates(post *common.ScheduledPost, updates PostUpdates) {
	if updates.Content != nil {
		post.Content = *updates.Content
	}
	if updates.MediaRefs != nil {
		post.MediaRefs = updates.MediaRefs
	}
	if updates.Platforms != nil {
		post.Platforms = updates.Platforms
	}
	if updates.Horizon != nil {
		post.Horizon = *updates.Horizon
	}
}
