package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/AzielCF/postpilot/scheduling/domain/platform"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// Client wraps the Gemini API for content assistance. A zero APIKey
// disables the integration; callers must check Enabled first.
type Client struct {
	apiKey string
	model  string
}

func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Client{apiKey: apiKey, model: model}
}

func (c *Client) Enabled() bool { return c.apiKey != "" }

// GenerateSuggestions asks for post drafts on a topic, one per line.
func (c *Client) GenerateSuggestions(ctx context.Context, topic string, pf platform.Platform, count int) ([]string, error) {
	if count <= 0 || count > 10 {
		count = 3
	}
	caps, _ := platform.CapabilitiesOf(pf)

	prompt := fmt.Sprintf(
		"You are a social media copywriter. Write %d distinct post drafts about: %s.\n"+
			"Target platform: %s. Hard limit: %d characters per draft.\n"+
			"Answer with one draft per line, no numbering, no commentary.",
		count, topic, caps.Label, caps.MaxChars)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var suggestions []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			suggestions = append(suggestions, trimmed)
		}
	}
	if len(suggestions) > count {
		suggestions = suggestions[:count]
	}
	return suggestions, nil
}

// OptimizeContent rewrites a draft to fit the platform's tone and limits.
func (c *Client) OptimizeContent(ctx context.Context, content string, pf platform.Platform) (string, error) {
	caps, _ := platform.CapabilitiesOf(pf)

	prompt := fmt.Sprintf(
		"Rewrite the following social media post for %s. Keep the meaning, tighten the copy, "+
			"stay under %d characters, and answer with the rewritten post only.\n\n%s",
		caps.Label, caps.MaxChars, content)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	result, err := client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", err
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		logrus.Debug("[AI] Empty completion from model")
		return "", nil
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}
