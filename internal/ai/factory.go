package ai

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fdg312/fitswift-hub/internal/config"
)

// NewProvider выбирает провайдер по AI_MODE. Неизвестный режим уже сведён к mock в config.
func NewProvider(ctx context.Context, cfg config.AIConfig, log *zap.Logger) (Provider, error) {
	params := GenerationParams{
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		TopK:            cfg.TopK,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
	if params == (GenerationParams{}) {
		params = DefaultGenerationParams
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Mode {
	case config.AIModeGemini:
		p, err := NewGeminiProvider(ctx, GeminiOptions{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: timeout,
			Params:  params,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		return p, nil
	case config.AIModeOpenAI:
		return NewOpenAIProvider(OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: timeout,
			Params:  params,
		}, log), nil
	default:
		return NewMockProvider(), nil
	}
}
