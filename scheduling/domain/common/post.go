package common

import (
	"time"

	"github.com/AzielCF/postpilot/scheduling/domain/platform"
)

type HorizonKind string

const (
	// HorizonByCount materializes the next N occurrences.
	HorizonByCount HorizonKind = "count"
	// HorizonByDays materializes every occurrence within the next N days.
	HorizonByDays HorizonKind = "days"
)

// HorizonPolicy controls how far ahead instances are pre-materialized.
type HorizonPolicy struct {
	Kind  HorizonKind `json:"kind"`
	Value int         `json:"value"`
}

// ScheduledPost is the recurrence parent, or a one-off post when Recurrence
// is nil. It is exclusively owned by the account that created it.
type ScheduledPost struct {
	ID              string              `json:"id"`
	AccountID       string              `json:"account_id"`
	Content         string              `json:"content"`
	MediaRefs       []string            `json:"media_refs,omitempty"`
	Platforms       []platform.Platform `json:"platforms"`
	FirstOccurrence time.Time           `json:"first_occurrence"`
	Recurrence      *RecurrenceRule     `json:"recurrence,omitempty"`
	Horizon         HorizonPolicy       `json:"horizon"`
	// EmittedCount tracks how many instances have ever been materialized
	// for this parent. It is the running count an after_count end
	// condition is checked against.
	EmittedCount int       `json:"emitted_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p ScheduledPost) IsRecurring() bool {
	return p.Recurrence != nil
}
