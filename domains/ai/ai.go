package ai

import "context"

type IAIUsecase interface {
	// GenerateSuggestions drafts post ideas for a topic, shaped to the
	// target platform's limits.
	GenerateSuggestions(ctx context.Context, request SuggestRequest) ([]string, error)
	// OptimizeContent rewrites a draft to fit the target platform.
	OptimizeContent(ctx context.Context, request OptimizeRequest) (string, error)
}

type SuggestRequest struct {
	AccountID string `json:"account_id"`
	Topic     string `json:"topic"`
	Platform  string `json:"platform"`
	Count     int    `json:"count,omitempty"`
}

type OptimizeRequest struct {
	AccountID string `json:"account_id"`
	Content   string `json:"content"`
	Platform  string `json:"platform"`
}
