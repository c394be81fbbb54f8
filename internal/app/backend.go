package app

import (
	"context"
	"fmt"

	"github.com/biglexj/prisma-vtuber/internal/config"
	"github.com/biglexj/prisma-vtuber/internal/generate"
)

// NewBackend creates the configured language model backend.
func NewBackend(ctx context.Context, cfg config.Config) (generate.Backend, error) {
	model := cfg.Generation.ModelName()
	switch cfg.Generation.Backend {
	case "gemini":
		return generate.NewGemini(ctx, cfg.Secrets.GoogleAPIKey, model)
	case "openai":
		return generate.NewOpenAI(cfg.Secrets.OpenAIAPIKey, cfg.Secrets.OpenAIBaseURL, model)
	default:
		return nil, fmt.Errorf("unknown generation backend %q", cfg.Generation.Backend)
	}
}
