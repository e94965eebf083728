package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/sirupsen/logrus"
)

const webhookTimeout = 10 * time.Second

// WebhookSink POSTs events as JSON to each configured URL. Delivery is
// fire-and-forget: a dead endpoint never blocks or fails a dispatch.
type WebhookSink struct {
	urls   []string
	secret string
	client *http.Client
}

func NewWebhookSink(urls []string, secret string) *WebhookSink {
	return &WebhookSink{
		urls:   urls,
		secret: secret,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

func (w *WebhookSink) Emit(ctx context.Context, event common.InstanceEvent) {
	if len(w.urls) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("[NOTIFY] Failed to encode webhook payload")
		return
	}

	for _, url := range w.urls {
		url := url
		go w.deliver(url, payload)
	}
}

func (w *WebhookSink) deliver(url string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		logrus.WithError(err).Warnf("[NOTIFY] Invalid webhook URL %s", url)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set("X-Signature-256", signPayload(w.secret, payload))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		logrus.WithError(err).Warnf("[NOTIFY] Webhook delivery to %s failed", url)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logrus.Warnf("[NOTIFY] Webhook %s answered HTTP %d", url, resp.StatusCode)
	}
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
