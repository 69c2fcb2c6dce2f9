// Package ai talks to generative model backends and returns their reply text
// together with any native function calls.
package ai

import (
	"context"
	"errors"

	"github.com/fdg312/fitswift-hub/internal/toolcall"
)

// ErrGenerationFailed оборачивает любые сетевые и сервисные ошибки провайдера.
var ErrGenerationFailed = errors.New("generation failed")

// Provider генерирует ответ на готовый промпт. Ретраев нет.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	Name() string
}

type GenerateRequest struct {
	Prompt string
}

type GenerateResponse struct {
	Text          string
	FunctionCalls []toolcall.FunctionCall
}

// GenerationParams — параметры сэмплинга, общие для всех провайдеров.
type GenerationParams struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// DefaultGenerationParams — значения, с которыми ассистент был настроен изначально.
var DefaultGenerationParams = GenerationParams{
	Temperature:     0.7,
	TopP:            0.95,
	TopK:            40,
	MaxOutputTokens: 2048,
}
