package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AzielCF/postpilot/core/config"
	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/application"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 20 * time.Second

// BuildPublishers assembles one publisher per configured platform. In stub
// mode every platform gets a stub that fabricates post IDs, so the whole
// pipeline can run without real credentials.
func BuildPublishers(cfg config.SocialConfig) []application.Publisher {
	if cfg.StubMode {
		publishers := make([]application.Publisher, 0, len(platform.All()))
		for _, pf := range platform.All() {
			publishers = append(publishers, NewStubPublisher(pf))
		}
		logrus.Warn("[SOCIAL] Stub mode enabled, no real platform calls will be made")
		return publishers
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	var publishers []application.Publisher
	if cfg.TwitterToken != "" {
		publishers = append(publishers, NewTwitterPublisher(client, cfg.TwitterAPIBase, cfg.TwitterToken))
	}
	if cfg.LinkedInToken != "" && cfg.LinkedInAuthorURN != "" {
		publishers = append(publishers, NewLinkedInPublisher(client, cfg.LinkedInAPIBase, cfg.LinkedInToken, cfg.LinkedInAuthorURN))
	}
	if cfg.FacebookToken != "" && cfg.FacebookPageID != "" {
		publishers = append(publishers, NewFacebookPublisher(client, cfg.FacebookAPIBase, cfg.FacebookToken, cfg.FacebookPageID))
	}
	if cfg.InstagramToken != "" && cfg.InstagramBusinessID != "" {
		publishers = append(publishers, NewInstagramPublisher(client, cfg.InstagramAPIBase, cfg.InstagramToken, cfg.InstagramBusinessID))
	}

	for _, p := range publishers {
		logrus.Infof("[SOCIAL] Publisher enabled for %s", p.Platform())
	}
	return publishers
}

// postJSON sends a JSON request and decodes a JSON response, translating
// transport failures and non-2xx statuses into PublishError.
func postJSON(ctx context.Context, client *http.Client, pf platform.Platform, url string, headers map[string]string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return pkgError.PublishError{Platform: string(pf), Reason: fmt.Sprintf("encode request: %v", err)}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return pkgError.PublishError{Platform: string(pf), Reason: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return asPublishError(pf, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgError.PublishError{
			Platform: string(pf),
			Reason:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(raw), 300)),
		}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgError.PublishError{Platform: string(pf), Reason: fmt.Sprintf("decode response: %v", err)}
		}
	}
	return nil
}

func asPublishError(pf platform.Platform, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgError.PublishError{Platform: string(pf), Reason: "request timed out", Timeout: true}
	}
	return pkgError.PublishError{Platform: string(pf), Reason: err.Error()}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
