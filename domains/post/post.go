package post

import (
	"context"
	"time"

	"github.com/AzielCF/postpilot/scheduling/domain/common"
)

type IPostUsecase interface {
	Create(ctx context.Context, request CreatePostRequest) (common.ScheduledPost, error)
	Get(ctx context.Context, accountID, postID string) (common.ScheduledPost, error)
	List(ctx context.Context, accountID string) ([]common.ScheduledPost, error)
	Edit(ctx context.Context, request EditPostRequest) (common.ScheduledPost, error)
	Delete(ctx context.Context, request DeletePostRequest) error
	ExtendHorizon(ctx context.Context, accountID, postID string) (int, error)

	ListInstances(ctx context.Context, accountID, postID string) ([]common.PostInstance, error)
	CancelInstance(ctx context.Context, accountID, instanceID string) (common.PostInstance, error)
	RetryInstance(ctx context.Context, accountID, instanceID string) (common.PostInstance, error)
}

// RecurrencePayload is the wire form of a recurrence rule.
type RecurrencePayload struct {
	Frequency   string     `json:"frequency"`              // daily | weekly | monthly
	DaysOfWeek  []int      `json:"days_of_week,omitempty"` // 0=Sunday .. 6=Saturday
	DaysOfMonth []int      `json:"days_of_month,omitempty"`
	EndKind     string     `json:"end_kind,omitempty"` // never | on_date | after_count
	EndDate     *time.Time `json:"end_date,omitempty"`
	EndCount    int        `json:"end_count,omitempty"`
}

type CreatePostRequest struct {
	AccountID       string             `json:"account_id"`
	Content         string             `json:"content"`
	MediaRefs       []string           `json:"media_refs,omitempty"`
	Platforms       []string           `json:"platforms"`
	FirstOccurrence time.Time          `json:"first_occurrence"`
	Recurrence      *RecurrencePayload `json:"recurrence,omitempty"`
	HorizonKind     string             `json:"horizon_kind,omitempty"` // days | count
	HorizonValue    int                `json:"horizon_value,omitempty"`
}

type EditPostRequest struct {
	PostID          string             `json:"-"`
	AccountID       string             `json:"account_id"`
	Content         *string            `json:"content,omitempty"`
	MediaRefs       []string           `json:"media_refs,omitempty"`
	Platforms       []string           `json:"platforms,omitempty"`
	FirstOccurrence *time.Time         `json:"first_occurrence,omitempty"`
	Recurrence      *RecurrencePayload `json:"recurrence,omitempty"`
	ClearRecurrence bool               `json:"clear_recurrence,omitempty"`
	HorizonKind     string             `json:"horizon_kind,omitempty"`
	HorizonValue    int                `json:"horizon_value,omitempty"`
}

type DeletePostRequest struct {
	PostID    string `json:"-"`
	AccountID string `json:"account_id"`
	Scope     string `json:"scope,omitempty"` // future_only (default) | all
}
