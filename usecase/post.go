package usecase

import (
	"context"
	"time"

	domainPost "github.com/AzielCF/postpilot/domains/post"
	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/application"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
	"github.com/AzielCF/postpilot/validations"
)

type servicePost struct {
	ledger     *application.Ledger
	dispatcher *application.Dispatcher
	scheduler  *application.Scheduler
}

func NewPostService(ledger *application.Ledger, dispatcher *application.Dispatcher, scheduler *application.Scheduler) domainPost.IPostUsecase {
	return &servicePost{
		ledger:     ledger,
		dispatcher: dispatcher,
		scheduler:  scheduler,
	}
}

func (service servicePost) Create(ctx context.Context, request domainPost.CreatePostRequest) (common.ScheduledPost, error) {
	if err := validations.ValidateCreatePost(ctx, request); err != nil {
		return common.ScheduledPost{}, err
	}

	platforms, err := parsePlatforms(request.Platforms)
	if err != nil {
		return common.ScheduledPost{}, err
	}

	post := common.ScheduledPost{
		AccountID:       request.AccountID,
		Content:         request.Content,
		MediaRefs:       request.MediaRefs,
		Platforms:       platforms,
		FirstOccurrence: request.FirstOccurrence.UTC(),
		Recurrence:      toRecurrenceRule(request.Recurrence),
		Horizon: common.HorizonPolicy{
			Kind:  common.HorizonKind(request.HorizonKind),
			Value: request.HorizonValue,
		},
	}

	created, err := service.ledger.CreatePost(ctx, post)
	if err != nil {
		return common.ScheduledPost{}, err
	}

	// New instances may be due soon: nudge the scheduler.
	service.wake(ctx)
	return created, nil
}

func (service servicePost) Get(ctx context.Context, accountID, postID string) (common.ScheduledPost, error) {
	return service.ledger.GetPost(ctx, accountID, postID)
}

func (service servicePost) List(ctx context.Context, accountID string) ([]common.ScheduledPost, error) {
	return service.ledger.ListPosts(ctx, accountID)
}

func (service servicePost) Edit(ctx context.Context, request domainPost.EditPostRequest) (common.ScheduledPost, error) {
	if err := validations.ValidateEditPost(ctx, request); err != nil {
		return common.ScheduledPost{}, err
	}

	updates := application.PostUpdates{
		Content:         request.Content,
		MediaRefs:       request.MediaRefs,
		FirstOccurrence: request.FirstOccurrence,
		ClearRecurrence: request.ClearRecurrence,
	}
	if request.Platforms != nil {
		platforms, err := parsePlatforms(request.Platforms)
		if err != nil {
			return common.ScheduledPost{}, err
		}
		updates.Platforms = platforms
	}
	if request.Recurrence != nil {
		updates.Recurrence = toRecurrenceRule(request.Recurrence)
	}
	if request.HorizonKind != "" || request.HorizonValue != 0 {
		updates.Horizon = &common.HorizonPolicy{
			Kind:  common.HorizonKind(request.HorizonKind),
			Value: request.HorizonValue,
		}
	}

	edited, err := service.ledger.EditPost(ctx, request.AccountID, request.PostID, updates)
	if err != nil {
		return common.ScheduledPost{}, err
	}

	if updates.TouchesTiming() {
		service.wake(ctx)
	}
	return edited, nil
}

func (service servicePost) Delete(ctx context.Context, request domainPost.DeletePostRequest) error {
	if err := validations.ValidateDeletePost(ctx, request); err != nil {
		return err
	}
	scope := application.DeleteScope(request.Scope)
	if request.Scope == "" {
		scope = application.DeleteFutureOnly
	}
	return service.ledger.DeletePost(ctx, request.AccountID, request.PostID, scope)
}

func (service servicePost) ExtendHorizon(ctx context.Context, accountID, postID string) (int, error) {
	added, err := service.ledger.ExtendHorizon(ctx, accountID, postID)
	if err != nil {
		return 0, err
	}
	if added > 0 {
		service.wake(ctx)
	}
	return added, nil
}

func (service servicePost) ListInstances(ctx context.Context, accountID, postID string) ([]common.PostInstance, error) {
	return service.ledger.ListInstances(ctx, accountID, postID)
}

func (service servicePost) CancelInstance(ctx context.Context, accountID, instanceID string) (common.PostInstance, error) {
	return service.dispatcher.Cancel(ctx, accountID, instanceID)
}

func (service servicePost) RetryInstance(ctx context.Context, accountID, instanceID string) (common.PostInstance, error) {
	instance, err := service.dispatcher.Retry(ctx, accountID, instanceID)
	if err != nil {
		return common.PostInstance{}, err
	}
	service.wake(ctx)
	return instance, nil
}

func (service servicePost) wake(ctx context.Context) {
	if service.scheduler != nil {
		service.scheduler.Wake(ctx)
	}
}

func parsePlatforms(raw []string) ([]platform.Platform, error) {
	out := make([]platform.Platform, 0, len(raw))
	seen := make(map[platform.Platform]bool, len(raw))
	for _, r := range raw {
		pf, ok := platform.Parse(r)
		if !ok {
			return nil, pkgError.ValidationError("platforms: unknown platform " + r + ".")
		}
		if seen[pf] {
			continue
		}
		seen[pf] = true
		out = append(out, pf)
	}
	return out, nil
}

func toRecurrenceRule(payload *domainPost.RecurrencePayload) *common.RecurrenceRule {
	if payload == nil {
		return nil
	}

	rule := &common.RecurrenceRule{
		Frequency: common.Frequency(payload.Frequency),
	}
	for _, d := range payload.DaysOfWeek {
		rule.DaysOfWeek = append(rule.DaysOfWeek, time.Weekday(d))
	}
	rule.DaysOfMonth = append(rule.DaysOfMonth, payload.DaysOfMonth...)

	switch common.EndConditionKind(payload.EndKind) {
	case common.EndOnDate:
		date := payload.EndDate.UTC()
		rule.End = common.EndCondition{Kind: common.EndOnDate, Date: &date}
	case common.EndAfterCount:
		rule.End = common.EndCondition{Kind: common.EndAfterCount, Count: payload.EndCount}
	default:
		rule.End = common.EndCondition{Kind: common.EndNever}
	}
	return rule
}
