package validations

import (
	"context"
	"fmt"
	"time"

	domainPost "github.com/AzielCF/postpilot/domains/post"
	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func ValidateCreatePost(ctx context.Context, request domainPost.CreatePostRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.AccountID, validation.Required),
		validation.Field(&request.Content, validation.Required),
		validation.Field(&request.Platforms, validation.Required),
		validation.Field(&request.FirstOccurrence, validation.Required, validation.By(mustBeInstant)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	if err := validatePlatformSelection(request.Content, request.MediaRefs, request.Platforms); err != nil {
		return err
	}
	if request.Recurrence != nil {
		if err := ValidateRecurrencePayload(ctx, *request.Recurrence, request.FirstOccurrence); err != nil {
			return err
		}
	}
	return validateHorizon(request.HorizonKind, request.HorizonValue)
}

func ValidateEditPost(ctx context.Context, request domainPost.EditPostRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.PostID, validation.Required),
		validation.Field(&request.AccountID, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	if request.Content != nil && *request.Content == "" {
		return pkgError.ValidationError("content: cannot be blank.")
	}
	if request.Platforms != nil && len(request.Platforms) == 0 {
		return pkgError.ValidationError("platforms: cannot be blank.")
	}
	if request.Platforms != nil {
		content := ""
		if request.Content != nil {
			content = *request.Content
		}
		if err := validatePlatformSelection(content, request.MediaRefs, request.Platforms); err != nil {
			return err
		}
	}
	if request.ClearRecurrence && request.Recurrence != nil {
		return pkgError.ValidationError("recurrence: cannot both clear and replace the rule.")
	}
	if request.Recurrence != nil {
		first := time.Time{}
		if request.FirstOccurrence != nil {
			first = *request.FirstOccurrence
		}
		if err := ValidateRecurrencePayload(ctx, *request.Recurrence, first); err != nil {
			return err
		}
	}
	if request.HorizonKind != "" || request.HorizonValue != 0 {
		return validateHorizon(request.HorizonKind, request.HorizonValue)
	}
	return nil
}

func ValidateDeletePost(ctx context.Context, request domainPost.DeletePostRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.PostID, validation.Required),
		validation.Field(&request.AccountID, validation.Required),
		validation.Field(&request.Scope, validation.In("", "future_only", "all")),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

// ValidateRecurrencePayload enforces the rule shape: each frequency takes
// only its own day selector, and the end condition must be self-consistent.
func ValidateRecurrencePayload(ctx context.Context, payload domainPost.RecurrencePayload, firstOccurrence time.Time) error {
	switch common.Frequency(payload.Frequency) {
	case common.FrequencyDaily:
		if len(payload.DaysOfWeek) > 0 || len(payload.DaysOfMonth) > 0 {
			return pkgError.ValidationError("recurrence: daily rules take no day selector.")
		}
	case common.FrequencyWeekly:
		if len(payload.DaysOfMonth) > 0 {
			return pkgError.ValidationError("recurrence: weekly rules take days_of_week, not days_of_month.")
		}
		if len(payload.DaysOfWeek) == 0 {
			return pkgError.ValidationError("recurrence: weekly rules require at least one day of week.")
		}
		for _, d := range payload.DaysOfWeek {
			if d < 0 || d > 6 {
				return pkgError.ValidationError(fmt.Sprintf("recurrence: day of week %d out of range 0-6.", d))
			}
		}
	case common.FrequencyMonthly:
		if len(payload.DaysOfWeek) > 0 {
			return pkgError.ValidationError("recurrence: monthly rules take days_of_month, not days_of_week.")
		}
		if len(payload.DaysOfMonth) == 0 {
			return pkgError.ValidationError("recurrence: monthly rules require at least one day of month.")
		}
		for _, d := range payload.DaysOfMonth {
			if d < 1 || d > 31 {
				return pkgError.ValidationError(fmt.Sprintf("recurrence: day of month %d out of range 1-31.", d))
			}
		}
	default:
		return pkgError.ValidationError(fmt.Sprintf("recurrence: unknown frequency %q.", payload.Frequency))
	}

	switch common.EndConditionKind(payload.EndKind) {
	case common.EndNever, "":
		if payload.EndDate != nil || payload.EndCount != 0 {
			return pkgError.ValidationError("recurrence: a never-ending rule takes no end date or count.")
		}
	case common.EndOnDate:
		if payload.EndDate == nil {
			return pkgError.ValidationError("recurrence: end_date is required for on_date rules.")
		}
		if !firstOccurrence.IsZero() && payload.EndDate.Before(firstOccurrence) {
			return pkgError.ValidationError("recurrence: end_date cannot precede the first occurrence.")
		}
	case common.EndAfterCount:
		if payload.EndCount < 1 {
			return pkgError.ValidationError("recurrence: end_count must be at least 1.")
		}
	default:
		return pkgError.ValidationError(fmt.Sprintf("recurrence: unknown end kind %q.", payload.EndKind))
	}
	return nil
}

// validatePlatformSelection checks each target platform against its
// capabilities: known name, content length, media rules.
func validatePlatformSelection(content string, mediaRefs, platforms []string) error {
	for _, raw := range platforms {
		pf, ok := platform.Parse(raw)
		if !ok {
			return pkgError.ValidationError(fmt.Sprintf("platforms: unknown platform %q.", raw))
		}
		caps, _ := platform.CapabilitiesOf(pf)
		if content != "" && caps.MaxChars > 0 && len([]rune(content)) > caps.MaxChars {
			return pkgError.ValidationError(fmt.Sprintf("content: exceeds the %d character limit of %s.", caps.MaxChars, caps.Label))
		}
		if caps.RequiresMedia && len(mediaRefs) == 0 {
			return pkgError.ValidationError(fmt.Sprintf("media_refs: %s requires at least one media attachment.", caps.Label))
		}
		if !caps.SupportsMedia && len(mediaRefs) > 0 {
			return pkgError.ValidationError(fmt.Sprintf("media_refs: %s does not accept media attachments.", caps.Label))
		}
		if caps.SupportsMedia && caps.MaxMedia > 0 && len(mediaRefs) > caps.MaxMedia {
			return pkgError.ValidationError(fmt.Sprintf("media_refs: %s accepts at most %d attachments.", caps.Label, caps.MaxMedia))
		}
	}
	return nil
}

func validateHorizon(kind string, value int) error {
	switch common.HorizonKind(kind) {
	case "", common.HorizonByDays, common.HorizonByCount:
	default:
		return pkgError.ValidationError(fmt.Sprintf("horizon_kind: must be days or count, got %q.", kind))
	}
	if value < 0 {
		return pkgError.ValidationError("horizon_value: cannot be negative.")
	}
	return nil
}

// mustBeInstant rejects zero or non-time values. Offsets are accepted
// here; timestamps are normalized to UTC when the post is stored.
func mustBeInstant(value interface{}) error {
	t, ok := value.(time.Time)
	if !ok || t.IsZero() {
		return fmt.Errorf("must be a valid timestamp")
	}
	return nil
}
