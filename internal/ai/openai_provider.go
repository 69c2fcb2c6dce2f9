package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/fdg312/fitswift-hub/internal/toolcall"
)

// OpenAIProvider — провайдер для OpenAI-совместимых chat completions.
type OpenAIProvider struct {
	client openai.Client
	model  string
	params GenerationParams
	tools  []openai.ChatCompletionToolUnionParam
	log    *zap.Logger
}

// OpenAIOptions — параметры подключения к OpenAI-совместимому API.
type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Params  GenerationParams
}

func NewOpenAIProvider(opts OpenAIOptions, log *zap.Logger) *OpenAIProvider {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Model == "" {
		opts.Model = "gpt-4.1-mini"
	}

	options := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		options = append(options, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		options = append(options, option.WithRequestTimeout(opts.Timeout))
	}

	return &OpenAIProvider{
		client: openai.NewClient(options...),
		model:  opts.Model,
		params: opts.Params,
		tools:  openAITools(Tools),
		log:    log,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	param := openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemInstruction),
			openai.UserMessage(req.Prompt),
		},
		Tools:               p.tools,
		Temperature:         openai.Float(p.params.Temperature),
		TopP:                openai.Float(p.params.TopP),
		MaxCompletionTokens: openai.Int(int64(p.params.MaxOutputTokens)),
	}

	resp, err := p.client.Chat.Completions.New(ctx, param)
	if err != nil {
		p.log.Warn("openai request failed", zap.String("model", p.model), zap.Error(err))
		return GenerateResponse{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResponse{}, fmt.Errorf("%w: openai response has no choices", ErrGenerationFailed)
	}

	message := resp.Choices[0].Message
	out := GenerateResponse{Text: message.Content}
	for _, tc := range message.ToolCalls {
		call := toolcall.FunctionCall{Name: tc.Function.Name}
		if tc.Function.Arguments != "" {
			var args map[string]any
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				// Аргументы не JSON: вызов остаётся, поля получат значения по умолчанию.
				p.log.Debug("tool call arguments are not JSON", zap.String("tool", tc.Function.Name), zap.Error(err))
			}
			call.Args = args
		}
		out.FunctionCalls = append(out.FunctionCalls, call)
	}
	return out, nil
}

func openAITools(specs []ToolSpec) []openai.ChatCompletionToolUnionParam {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		props := make(map[string]any, len(spec.Params))
		for _, p := range spec.Params {
			prop := map[string]any{
				"type":        "string",
				"description": p.Description,
			}
			if len(p.Enum) > 0 {
				prop["enum"] = p.Enum
			}
			props[p.Name] = prop
		}
		required := spec.Required
		if required == nil {
			required = []string{}
		}

		tools = append(tools, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        spec.Name,
					Description: openai.String(spec.Description),
					Parameters: openai.FunctionParameters{
						"type":       "object",
						"properties": props,
						"required":   required,
					},
				},
			},
		})
	}
	return tools
}
