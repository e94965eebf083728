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

// InstagramPublisher uses the Graph API two-step flow: create a media
// container for the first media ref, then publish it with the caption.
type InstagramPublisher struct {
	client     *http.Client
	apiBase    string
	token      string
	businessID string
}

func NewInstagramPublisher(client *http.Client, apiBase, token, businessID string) *InstagramPublisher {
	return &InstagramPublisher{
		client:     client,
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		token:      token,
		businessID: businessID,
	}
}

func (i *InstagramPublisher) Platform() platform.Platform { return platform.PlatformInstagram }

func (i *InstagramPublisher) Publish(ctx context.Context, instance common.PostInstance) (string, error) {
	if len(instance.MediaRefs) == 0 {
		return "", pkgError.PublishError{Platform: "instagram", Reason: "instagram requires a media attachment"}
	}

	var container struct {
		ID string `json:"id"`
	}
	err := postJSON(ctx, i.client, platform.PlatformInstagram,
		fmt.Sprintf("%s/%s/media", i.apiBase, i.businessID), nil,
		map[string]any{
			"image_url":    instance.MediaRefs[0],
			"caption":      instance.Content,
			"access_token": i.token,
		}, &container)
	if err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", pkgError.PublishError{Platform: "instagram", Reason: "media container creation returned no id"}
	}

	var published struct {
		ID string `json:"id"`
	}
	err = postJSON(ctx, i.client, platform.PlatformInstagram,
		fmt.Sprintf("%s/%s/media_publish", i.apiBase, i.businessID), nil,
		map[string]any{
			"creation_id":  container.ID,
			"access_token": i.token,
		}, &published)
	if err != nil {
		return "", err
	}
	if published.ID == "" {
		return "", pkgError.PublishError{Platform: "instagram", Reason: "media publish returned no id"}
	}
	return published.ID, nil
}
