package social

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwitterPublisher_Publish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello world", body["text"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"tw-42"}}`))
	}))
	defer server.Close()

	pub := NewTwitterPublisher(server.Client(), server.URL, "token-123")

	postID, err := pub.Publish(context.Background(), common.PostInstance{ID: "inst-1", Content: "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "tw-42", postID)
}

func TestTwitterPublisher_HTTPErrorBecomesPublishError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"title":"Too Many Requests"}`))
	}))
	defer server.Close()

	pub := NewTwitterPublisher(server.Client(), server.URL, "token-123")

	_, err := pub.Publish(context.Background(), common.PostInstance{ID: "inst-1", Content: "x"})
	var pubErr pkgError.PublishError
	require.True(t, errors.As(err, &pubErr))
	assert.Equal(t, "twitter", pubErr.Platform)
	assert.False(t, pubErr.Timeout)
	assert.Contains(t, pubErr.Reason, "429")
}

func TestTwitterPublisher_TimeoutClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	pub := NewTwitterPublisher(server.Client(), server.URL, "token-123")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := pub.Publish(ctx, common.PostInstance{ID: "inst-1", Content: "x"})
	var pubErr pkgError.PublishError
	require.True(t, errors.As(err, &pubErr))
	assert.True(t, pubErr.Timeout)
}
