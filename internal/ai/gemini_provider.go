package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/fdg312/fitswift-hub/internal/toolcall"
)

// GeminiProvider — провайдер поверх Gemini API с native function calling.
type GeminiProvider struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
	log    *zap.Logger
}

// GeminiOptions — параметры подключения к Gemini.
type GeminiOptions struct {
	APIKey  string
	Model   string
	BaseURL string // пусто — публичный endpoint
	Timeout time.Duration
	Params  GenerationParams
}

func NewGeminiProvider(ctx context.Context, opts GeminiOptions, log *zap.Logger) (*GeminiProvider, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  opts.Model,
		config: geminiConfig(opts.Params),
		log:    log,
	}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, p.config)
	if err != nil {
		p.log.Warn("gemini request failed", zap.String("model", p.model), zap.Error(err))
		return GenerateResponse{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	out := GenerateResponse{Text: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		if fc == nil {
			continue
		}
		out.FunctionCalls = append(out.FunctionCalls, toolcall.FunctionCall{Name: fc.Name, Args: fc.Args})
	}
	return out, nil
}

func geminiConfig(params GenerationParams) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(float32(params.Temperature)),
		TopP:              genai.Ptr(float32(params.TopP)),
		TopK:              genai.Ptr(float32(params.TopK)),
		MaxOutputTokens:   int32(params.MaxOutputTokens),
		Tools: []*genai.Tool{
			{FunctionDeclarations: geminiDeclarations(Tools)},
		},
	}
}

func geminiDeclarations(specs []ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		props := make(map[string]*genai.Schema, len(spec.Params))
		for _, p := range spec.Params {
			props[p.Name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: p.Description,
				Enum:        p.Enum,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   spec.Required,
			},
		})
	}
	return decls
}
