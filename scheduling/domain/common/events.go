package common

import "time"

type EventKind string

const (
	EventInstancePublished EventKind = "instance_published"
	EventInstanceFailed    EventKind = "instance_failed"
	EventPostUpcoming      EventKind = "post_upcoming"
	EventAnalyticsAlert    EventKind = "analytics_alert"
)

// InstanceEvent is emitted on notification-worthy state changes. The engine
// only exposes the change; delivery is the notification sink's problem.
type InstanceEvent struct {
	Kind       EventKind     `json:"kind"`
	AccountID  string        `json:"account_id"`
	ParentID   string        `json:"parent_id"`
	InstanceID string        `json:"instance_id"`
	Instance   *PostInstance `json:"instance,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
