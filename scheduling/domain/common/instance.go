package common

import (
	"time"

	"github.com/AzielCF/postpilot/scheduling/domain/platform"
)

type InstanceState string

const (
	InstanceStateScheduled   InstanceState = "scheduled"
	InstanceStateDispatching InstanceState = "dispatching"
	InstanceStatePublished   InstanceState = "published"
	InstanceStateFailed      InstanceState = "failed"
	InstanceStateCancelled   InstanceState = "cancelled"
)

// IsTerminal reports whether no further transition is permitted. Terminal
// instances are never re-transitioned; corrections create a new instance.
func (s InstanceState) IsTerminal() bool {
	return s == InstanceStatePublished || s == InstanceStateFailed || s == InstanceStateCancelled
}

type PlatformResultStatus string

const (
	PlatformResultPending PlatformResultStatus = "pending"
	PlatformResultSuccess PlatformResultStatus = "success"
	PlatformResultError   PlatformResultStatus = "error"
)

// PlatformResult records the outcome of one publish attempt against one
// platform. PostID is set on success, Reason on error.
type PlatformResult struct {
	Status  PlatformResultStatus `json:"status"`
	PostID  string               `json:"post_id,omitempty"`
	Reason  string               `json:"reason,omitempty"`
	Timeout bool                 `json:"timeout,omitempty"`
}

// PostInstance is one concrete occurrence of a scheduled post. ParentID is a
// lookup reference, not an ownership edge. Content, MediaRefs and Platforms
// are snapshotted from the parent at materialization time: content-only
// edits rewrite the snapshot on non-terminal instances, while published and
// failed instances keep the content they were actually dispatched with.
type PostInstance struct {
	ID             string                               `json:"id"`
	ParentID       string                               `json:"parent_id"`
	AccountID      string                               `json:"account_id"`
	Content        string                               `json:"content"`
	MediaRefs      []string                             `json:"media_refs,omitempty"`
	Platforms      []platform.Platform                  `json:"platforms"`
	OccurrenceTime time.Time                            `json:"occurrence_time"`
	State          InstanceState                        `json:"state"`
	Results        map[platform.Platform]PlatformResult `json:"per_platform_result,omitempty"`
	ErrorMessage   string                               `json:"error_message,omitempty"`
	CreatedAt      time.Time                            `json:"created_at"`
	UpdatedAt      time.Time                            `json:"updated_at"`
}
