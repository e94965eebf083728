package social

import (
	"context"
	"net/http"
	"strings"

	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
)

// LinkedInPublisher posts UGC shares on behalf of a member or organization.
type LinkedInPublisher struct {
	client    *http.Client
	apiBase   string
	token     string
	authorURN string
}

func NewLinkedInPublisher(client *http.Client, apiBase, token, authorURN string) *LinkedInPublisher {
	return &LinkedInPublisher{
		client:    client,
		apiBase:   strings.TrimSuffix(apiBase, "/"),
		token:     token,
		authorURN: authorURN,
	}
}

func (l *LinkedInPublisher) Platform() platform.Platform { return platform.PlatformLinkedIn }

func (l *LinkedInPublisher) Publish(ctx context.Context, instance common.PostInstance) (string, error) {
	payload := map[string]any{
		"author":         l.authorURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]any{"text": instance.Content},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	var out struct {
		ID string `json:"id"`
	}
	err := postJSON(ctx, l.client, platform.PlatformLinkedIn, l.apiBase+"/v2/ugcPosts", map[string]string{
		"Authorization":             "Bearer " + l.token,
		"X-Restli-Protocol-Version": "2.0.0",
	}, payload, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", pkgError.PublishError{Platform: "linkedin", Reason: "response carried no share id"}
	}
	return out.ID, nil
}
