package social

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
)

// FacebookPublisher posts to a page feed via the Graph API.
type FacebookPublisher struct {
	client  *http.Client
	apiBase string
	token   string
	pageID  string
}

func NewFacebookPublisher(client *http.Client, apiBase, token, pageID string) *FacebookPublisher {
	return &FacebookPublisher{
		client:  client,
		apiBase: strings.TrimSuffix(apiBase, "/"),
		token:   token,
		pageID:  pageID,
	}
}

func (f *FacebookPublisher) Platform() platform.Platform { return platform.PlatformFacebook }

func (f *FacebookPublisher) Publish(ctx context.Context, instance common.PostInstance) (string, error) {
	payload := map[string]any{
		"message":      instance.Content,
		"access_token": f.token,
	}
	if len(instance.MediaRefs) > 0 {
		payload["link"] = instance.MediaRefs[0]
	}

	var out struct {
		ID string `json:"id"`
	}
	url := fmt.Sprintf("%s/%s/feed", f.apiBase, f.pageID)
	if err := postJSON(ctx, f.client, platform.PlatformFacebook, url, nil, payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", pkgError.PublishError{Platform: "facebook", Reason: "response carried no post id"}
	}
	return out.ID, nil
}
