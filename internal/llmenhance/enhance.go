// Package llmenhance provides an optional, narrow post-generation
// rewrite pass: offer the code, accept or ignore the result. Failures
// are always non-fatal to compilation.
package llmenhance

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/blackcoderx/mfp/internal/config"
)

// Enhancer rewrites generated code, returning the rewritten source or an
// error. Callers treat a failure as non-fatal and keep the original code.
type Enhancer interface {
	Enhance(ctx context.Context, code string) (string, error)
}

// New returns a genai-backed Enhancer, or a disabledEnhancer when no API
// key is configured.
func New(cfg *config.Config) Enhancer {
	if !cfg.LLMEnhance || cfg.LLMAPIKey == "" {
		return disabledEnhancer{}
	}
	return &geminiEnhancer{apiKey: cfg.LLMAPIKey, model: cfg.LLMModel}
}

type disabledEnhancer struct{}

func (disabledEnhancer) Enhance(_ context.Context, code string) (string, error) {
	return code, nil
}

type geminiEnhancer struct {
	apiKey string
	model  string
}

func (e *geminiEnhancer) Enhance(ctx context.Context, code string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: e.apiKey})
	if err != nil {
		return code, fmt.Errorf("creating genai client: %w", err)
	}

	prompt := "Improve the readability of this generated Python module without " +
		"changing its behavior or signatures. Return only the rewritten source.\n\n" + code

	resp, err := client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), nil)
	if err != nil {
		return code, fmt.Errorf("generating content: %w", err)
	}

	rewritten := resp.Text()
	if rewritten == "" {
		return code, fmt.Errorf("empty response from model")
	}
	return rewritten, nil
}
