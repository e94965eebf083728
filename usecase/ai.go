package usecase

import (
	"context"
	"fmt"

	domainAI "github.com/AzielCF/postpilot/domains/ai"
	aiClient "github.com/AzielCF/postpilot/integrations/ai"
	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
)

type serviceAI struct {
	client *aiClient.Client
}

func NewAIService(client *aiClient.Client) domainAI.IAIUsecase {
	return &serviceAI{client: client}
}

func (service serviceAI) GenerateSuggestions(ctx context.Context, request domainAI.SuggestRequest) ([]string, error) {
	pf, err := service.check(request.Platform, request.Topic, "topic")
	if err != nil {
		return nil, err
	}
	return service.client.GenerateSuggestions(ctx, request.Topic, pf, request.Count)
}

func (service serviceAI) OptimizeContent(ctx context.Context, request domainAI.OptimizeRequest) (string, error) {
	pf, err := service.check(request.Platform, request.Content, "content")
	if err != nil {
		return "", err
	}
	return service.client.OptimizeContent(ctx, request.Content, pf)
}

func (service serviceAI) check(rawPlatform, text, field string) (platform.Platform, error) {
	if !service.client.Enabled() {
		return "", pkgError.ValidationError("ai: no API key configured.")
	}
	if text == "" {
		return "", pkgError.ValidationError(field + ": cannot be blank.")
	}
	pf, ok := platform.Parse(rawPlatform)
	if !ok {
		return "", pkgError.ValidationError(fmt.Sprintf("platform: unknown platform %q.", rawPlatform))
	}
	return pf, nil
}
