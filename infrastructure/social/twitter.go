package social

import (
	"context"
	"net/http"
	"strings"

	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
)

// TwitterPublisher posts through the v2 tweets endpoint.
type TwitterPublisher struct {
	client  *http.Client
	apiBase string
	token   string
}

func NewTwitterPublisher(client *http.Client, apiBase, token string) *TwitterPublisher {
	return &TwitterPublisher{
		client:  client,
		apiBase: strings.TrimSuffix(apiBase, "/"),
		token:   token,
	}
}

func (t *TwitterPublisher) Platform() platform.Platform { return platform.PlatformTwitter }

func (t *TwitterPublisher) Publish(ctx context.Context, instance common.PostInstance) (string, error) {
	payload := map[string]any{"text": instance.Content}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	err := postJSON(ctx, t.client, platform.PlatformTwitter, t.apiBase+"/2/tweets", map[string]string{
		"Authorization": "Bearer " + t.token,
	}, payload, &out)
	if err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", pkgError.PublishError{Platform: "twitter", Reason: "response carried no tweet id"}
	}
	return out.Data.ID, nil
}
