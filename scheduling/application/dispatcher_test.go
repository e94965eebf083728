package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	platform platform.Platform
	postID   string
	err      error
	delay    time.Duration

	mu    sync.Mutex
	calls int
}

func (f *fakePublisher) Platform() platform.Platform { return f.platform }

func (f *fakePublisher) Publish(ctx context.Context, instance common.PostInstance) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.postID, nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingSink struct {
	mu     sync.Mutex
	events []common.InstanceEvent
}

func (s *recordingSink) Emit(ctx context.Context, event common.InstanceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) all() []common.InstanceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common.InstanceEvent(nil), s.events...)
}

func seedInstance(t *testing.T, repo *memoryRepo, state common.InstanceState, platforms ...platform.Platform) common.PostInstance {
	t.Helper()
	if len(platforms) == 0 {
		platforms = []platform.Platform{platform.PlatformTwitter}
	}
	instance := common.PostInstance{
		ID:             "inst-1",
		ParentID:       "post-1",
		AccountID:      "acc1",
		Content:        "hello world",
		Platforms:      platforms,
		OccurrenceTime: testNow,
		State:          state,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
	require.NoError(t, repo.CreateInstance(context.Background(), instance))
	return instance
}

func TestDispatcher_PublishAllPlatformsSucceeds(t *testing.T) {
	repo := newMemoryRepo()
	seedInstance(t, repo, common.InstanceStateScheduled, platform.PlatformTwitter, platform.PlatformLinkedIn)

	sink := &recordingSink{}
	twitter := &fakePublisher{platform: platform.PlatformTwitter, postID: "tw-1"}
	linkedin := &fakePublisher{platform: platform.PlatformLinkedIn, postID: "li-1"}
	d := NewDispatcher(repo, []Publisher{twitter, linkedin}, sink, time.Second, fixedNow)

	claimed, err := d.Dispatch(context.Background(), "inst-1")
	require.NoError(t, err)
	require.True(t, claimed)

	instance, err := repo.GetInstance(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, common.InstanceStatePublished, instance.State)
	assert.Empty(t, instance.ErrorMessage)
	assert.Equal(t, "tw-1", instance.Results[platform.PlatformTwitter].PostID)
	assert.Equal(t, "li-1", instance.Results[platform.PlatformLinkedIn].PostID)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, common.EventInstancePublished, events[0].Kind)
	assert.Equal(t, "inst-1", events[0].InstanceID)
}

func TestDispatcher_PartialFailureMarksFailed(t *testing.T) {
	repo := newMemoryRepo()
	seedInstance(t, repo, common.InstanceStateScheduled, platform.PlatformTwitter, platform.PlatformLinkedIn)

	sink := &recordingSink{}
	twitter := &fakePublisher{platform: platform.PlatformTwitter, postID: "tw-1"}
	linkedin := &fakePublisher{platform: platform.PlatformLinkedIn, err: pkgError.PublishError{Platform: "linkedin", Reason: "rate limited"}}
	d := NewDispatcher(repo, []Publisher{twitter, linkedin}, sink, time.Second, fixedNow)

	claimed, err := d.Dispatch(context.Background(), "inst-1")
	require.NoError(t, err)
	require.True(t, claimed)

	instance, _ := repo.GetInstance(context.Background(), "inst-1")
	assert.Equal(t, common.InstanceStateFailed, instance.State)
	assert.Contains(t, instance.ErrorMessage, "rate limited")

	// The successful platform's result is preserved alongside the failure.
	assert.Equal(t, common.PlatformResultSuccess, instance.Results[platform.PlatformTwitter].Status)
	assert.Equal(t, common.PlatformResultError, instance.Results[platform.PlatformLinkedIn].Status)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, common.EventInstanceFailed, events[0].Kind)
}

func TestDispatcher_TimeoutCountsAsFailure(t *testing.T) {
	repo := newMemoryRepo()
	seedInstance(t, repo, common.InstanceStateScheduled)

	slow := &fakePublisher{platform: platform.PlatformTwitter, postID: "tw-1", delay: 200 * time.Millisecond}
	d := NewDispatcher(repo, []Publisher{slow}, nil, 20*time.Millisecond, fixedNow)

	claimed, err := d.Dispatch(context.Background(), "inst-1")
	require.NoError(t, err)
	require.True(t, claimed)

	instance, _ := repo.GetInstance(context.Background(), "inst-1")
	assert.Equal(t, common.InstanceStateFailed, instance.State)
	assert.True(t, instance.Results[platform.PlatformTwitter].Timeout)
}

func TestDispatcher_MissingPublisherFails(t *testing.T) {
	repo := newMemoryRepo()
	seedInstance(t, repo, common.InstanceStateScheduled, platform.PlatformInstagram)

	d := NewDispatcher(repo, nil, nil, time.Second, fixedNow)

	claimed, err := d.Dispatch(context.Background(), "inst-1")
	require.NoError(t, err)
	require.True(t, claimed)

	instance, _ := repo.GetInstance(context.Background(), "inst-1")
	assert.Equal(t, common.InstanceStateFailed, instance.State)
	assert.Contains(t, instance.ErrorMessage, "no publisher configured")
}

func TestDispatcher_DispatchSkipsNonScheduled(t *testing.T) {
	repo := newMemoryRepo()
	seedInstance(t, repo, common.InstanceStateCancelled)

	pub := &fakePublisher{platform: platform.PlatformTwitter, postID: "tw-1"}
	d := NewDispatcher(repo, []Publisher{pub}, nil, time.Second, fixedNow)

	claimed, err := d.Dispatch(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.False(t, claimed, "a cancelled instance must not be claimable")
	assert.Zero(t, pub.callCount())

	instance, _ := repo.GetInstance(context.Background(), "inst-1")
	assert.Equal(t, common.InstanceStateCancelled, instance.State)
}

func TestDispatcher_ConcurrentDispatchSingleWinner(t *testing.T) {
	repo := newMemoryRepo()
	seedInstance(t, repo, common.InstanceStateScheduled)

	pub := &fakePublisher{platform: platform.PlatformTwitter, postID: "tw-1"}
	d := NewDispatcher(repo, []Publisher{pub}, nil, time.Second, fixedNow)

	var wg sync.WaitGroup
	claims := make([]bool, 4)
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := d.Dispatch(context.Background(), "inst-1")
			require.NoError(t, err)
			claims[i] = claimed
		}()
	}
	wg.Wait()

	winners := 0
	for _, c := range claims {
		if c {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one dispatcher may claim the instance")
	assert.Equal(t, 1, pub.callCount())
}

func TestDispatcher_CancelScheduled(t *testing.T) {
	repo := newMemoryRepo()
	seedInstance(t, repo, common.InstanceStateScheduled)

	d := NewDispatcher(repo, nil, nil, time.Second, fixedNow)

	instance, err := d.Cancel(context.Background(), "acc1", "inst-1")
	require.NoError(t, err)
	assert.Equal(t, common.InstanceStateCancelled, instance.State)
}

func TestDispatcher_CancelRefusedPastScheduled(t *testing.T) {
	for _, state := range []common.InstanceState{
		common.InstanceStateDispatching,
		common.InstanceStatePublished,
		common.InstanceStateFailed,
		common.InstanceStateCancelled,
	} {
		t.Run(string(state), func(t *testing.T) {
			repo := newMemoryRepo()
			seedInstance(t, repo, state)

			d := NewDispatcher(repo, nil, nil, time.Second, fixedNow)

			_, err := d.Cancel(context.Background(), "acc1", "inst-1")
			var invalid pkgError.InvalidTransitionError
			require.True(t, errors.As(err, &invalid))

			instance, _ := repo.GetInstance(context.Background(), "inst-1")
			assert.Equal(t, state, instance.State, "state must be untouched after a refused cancel")
		})
	}
}

func TestDispatcher_RetryFailedInstance(t *testing.T) {
	repo := newMemoryRepo()
	instance := seedInstance(t, repo, common.InstanceStateFailed)
	instance.ErrorMessage = "twitter: boom"
	instance.Results = map[platform.Platform]common.PlatformResult{
		platform.PlatformTwitter: {Status: common.PlatformResultError, Reason: "boom"},
	}
	require.NoError(t, repo.UpdateInstance(context.Background(), instance))

	d := NewDispatcher(repo, nil, nil, time.Second, fixedNow)

	retried, err := d.Retry(context.Background(), "acc1", "inst-1")
	require.NoError(t, err)
	assert.Equal(t, common.InstanceStateScheduled, retried.State)
	assert.Empty(t, retried.ErrorMessage)
	assert.Empty(t, retried.Results)
}

// saveTrackingRepo counts full-row instance saves so tests can assert an
// operation went through the conditional transition instead.
type saveTrackingRepo struct {
	*memoryRepo
	mu    sync.Mutex
	saves int
}

func (r *saveTrackingRepo) UpdateInstance(ctx context.Context, instance common.PostInstance) error {
	r.mu.Lock()
	r.saves++
	r.mu.Unlock()
	return r.memoryRepo.UpdateInstance(ctx, instance)
}

func (r *saveTrackingRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func TestDispatcher_RetryThenImmediateDispatchPublishesOnce(t *testing.T) {
	inner := newMemoryRepo()
	repo := &saveTrackingRepo{memoryRepo: inner}
	instance := seedInstance(t, inner, common.InstanceStateFailed)
	instance.ErrorMessage = "twitter: boom"
	instance.Results = map[platform.Platform]common.PlatformResult{
		platform.PlatformTwitter: {Status: common.PlatformResultError, Reason: "boom"},
	}
	require.NoError(t, inner.UpdateInstance(context.Background(), instance))

	pub := &fakePublisher{platform: platform.PlatformTwitter, postID: "tw-9"}
	d := NewDispatcher(repo, []Publisher{pub}, nil, time.Second, fixedNow)

	before := repo.saveCount()
	_, err := d.Retry(context.Background(), "acc1", "inst-1")
	require.NoError(t, err)
	// Retry must not issue a full-row save after its transition: a save
	// landing behind a concurrent claim would rewind a published instance
	// back to scheduled and open the door to a second publication.
	assert.Equal(t, before, repo.saveCount(), "retry must clear results inside the conditional transition")

	// A dispatcher picking the instance up right after the retry.
	var wg sync.WaitGroup
	claimedTotal := 0
	var claimedMu sync.Mutex
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := d.Dispatch(context.Background(), "inst-1")
			require.NoError(t, err)
			if claimed {
				claimedMu.Lock()
				claimedTotal++
				claimedMu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, claimedTotal)
	assert.Equal(t, 1, pub.callCount(), "the retried instance must publish exactly once")

	final, err := inner.GetInstance(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, common.InstanceStatePublished, final.State)
}

func TestDispatcher_RetryRefusedUnlessFailed(t *testing.T) {
	repo := newMemoryRepo()
	seedInstance(t, repo, common.InstanceStatePublished)

	d := NewDispatcher(repo, nil, nil, time.Second, fixedNow)

	_, err := d.Retry(context.Background(), "acc1", "inst-1")
	var invalid pkgError.InvalidTransitionError
	assert.True(t, errors.As(err, &invalid))
}

func TestDispatcher_AccountScoping(t *testing.T) {
	repo := newMemoryRepo()
	seedInstance(t, repo, common.InstanceStateScheduled)

	d := NewDispatcher(repo, nil, nil, time.Second, fixedNow)

	_, err := d.Cancel(context.Background(), "someone-else", "inst-1")
	assert.ErrorIs(t, err, common.ErrInstanceNotFound)
}

func TestDispatcher_FindDueOrdersByOccurrence(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	for i, offset := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		require.NoError(t, repo.CreateInstance(ctx, common.PostInstance{
			ID:             string(rune('a' + i)),
			ParentID:       "post-1",
			AccountID:      "acc1",
			Content:        "x",
			Platforms:      []platform.Platform{platform.PlatformTwitter},
			OccurrenceTime: testNow.Add(offset),
			State:          common.InstanceStateScheduled,
		}))
	}

	d := NewDispatcher(repo, nil, nil, time.Second, fixedNow)

	due, err := d.FindDue(ctx, testNow, testNow.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.True(t, due[0].OccurrenceTime.Before(due[1].OccurrenceTime))
	assert.True(t, due[1].OccurrenceTime.Before(due[2].OccurrenceTime))
}
