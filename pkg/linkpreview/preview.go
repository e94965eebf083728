package linkpreview

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	fetchTimeout = 10 * time.Second
	maxBodySize  = 2 << 20
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// Preview is the OpenGraph summary of a linked page.
type Preview struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// FirstURL extracts the first URL embedded in post content, or "".
func FirstURL(content string) string {
	return urlPattern.FindString(content)
}

// Fetcher retrieves link previews. It holds its own HTTP client so the
// timeout is independent of the publish clients.
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: fetchTimeout}}
}

// FromContent previews the first URL found in the content. Returns nil
// without error when the content carries no URL.
func (f *Fetcher) FromContent(ctx context.Context, content string) (*Preview, error) {
	url := FirstURL(content)
	if url == "" {
		return nil, nil
	}
	return f.Fetch(ctx, url)
}

// Fetch loads the page and extracts OpenGraph metadata, falling back to
// the document title and meta description.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Preview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid preview url %q: %w", url, err)
	}
	req.Header.Set("User-Agent", "postpilot-linkpreview/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("preview fetch for %s answered HTTP %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(http.MaxBytesReader(nil, resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}

	preview := &Preview{
		URL:         url,
		Title:       metaProperty(doc, "og:title"),
		Description: metaProperty(doc, "og:description"),
		ImageURL:    metaProperty(doc, "og:image"),
		SiteName:    metaProperty(doc, "og:site_name"),
	}

	if preview.Title == "" {
		preview.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if preview.Description == "" {
		if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
			preview.Description = strings.TrimSpace(desc)
		}
	}
	return preview, nil
}

func metaProperty(doc *goquery.Document, property string) string {
	value, _ := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First().Attr("content")
	return strings.TrimSpace(value)
}
