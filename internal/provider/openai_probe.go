package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ProbeOpenAIModels lists the model ids visible to a direct OpenAI
// credential, used at startup to log a sanity check against the static
// registry (spec.md §6: "configuredProviders" in /health only reports a key
// is set, not that it actually works). Uses the typed go-openai client
// instead of a raw HTTP call since this is the one place the module talks to
// an API surface richer than chat completions.
func ProbeOpenAIModels(ctx context.Context, apiKey, baseURL string) ([]string, error) {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	list, err := client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("provider: list openai models: %w", err)
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
