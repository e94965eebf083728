package linkpreview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstURL(t *testing.T) {
	assert.Equal(t, "https://example.com/launch", FirstURL("Big news! https://example.com/launch today"))
	assert.Equal(t, "http://a.io/x", FirstURL("see http://a.io/x and https://b.io/y"))
	assert.Empty(t, FirstURL("no links here"))
}

func TestFetcher_ExtractsOpenGraph(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head>
			<title>Fallback Title</title>
			<meta property="og:title" content="Product Launch" />
			<meta property="og:description" content="The big day." />
			<meta property="og:image" content="https://cdn.example.com/hero.png" />
			<meta property="og:site_name" content="Example" />
		</head><body></body></html>`))
	}))
	defer server.Close()

	preview, err := NewFetcher().Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Product Launch", preview.Title)
	assert.Equal(t, "The big day.", preview.Description)
	assert.Equal(t, "https://cdn.example.com/hero.png", preview.ImageURL)
	assert.Equal(t, "Example", preview.SiteName)
}

func TestFetcher_FallsBackToTitleTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head>
			<title>Plain Page</title>
			<meta name="description" content="A plain description." />
		</head><body></body></html>`))
	}))
	defer server.Close()

	preview, err := NewFetcher().Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Plain Page", preview.Title)
	assert.Equal(t, "A plain description.", preview.Description)
}

func TestFetcher_FromContentWithoutURL(t *testing.T) {
	preview, err := NewFetcher().FromContent(context.Background(), "just words")
	require.NoError(t, err)
	assert.Nil(t, preview)
}

func TestFetcher_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewFetcher().Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}
