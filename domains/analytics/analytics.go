package analytics

import (
	"context"
	"time"
)

type IAnalyticsUsecase interface {
	// Record stores one metric snapshot for an account/platform pair.
	Record(ctx context.Context, request RecordSnapshotRequest) (MetricSnapshot, error)
	// Summary returns the latest snapshot per platform with the delta
	// against the previous one.
	Summary(ctx context.Context, accountID string) ([]PlatformSummary, error)
	// RunWatcher is the cron entrypoint: it raises analytics alerts for
	// sharp metric swings and reminders for posts due soon.
	RunWatcher(ctx context.Context) error
}

type RecordSnapshotRequest struct {
	AccountID   string  `json:"account_id"`
	Platform    string  `json:"platform"`
	Followers   int     `json:"followers"`
	Impressions int     `json:"impressions"`
	Engagement  float64 `json:"engagement"`
}

type MetricSnapshot struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Platform    string    `json:"platform"`
	Followers   int       `json:"followers"`
	Impressions int       `json:"impressions"`
	Engagement  float64   `json:"engagement"`
	CapturedAt  time.Time `json:"captured_at"`
}

type PlatformSummary struct {
	Platform          string    `json:"platform"`
	Latest            MetricSnapshot `json:"latest"`
	FollowersDelta    float64   `json:"followers_delta_pct"`
	ImpressionsDelta  float64   `json:"impressions_delta_pct"`
	EngagementDelta   float64   `json:"engagement_delta_pct"`
	PreviousCapturedAt time.Time `json:"previous_captured_at,omitempty"`
}
