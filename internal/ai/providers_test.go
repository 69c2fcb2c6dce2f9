package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/fdg312/fitswift-hub/internal/config"
	"github.com/fdg312/fitswift-hub/internal/toolcall"
)

func TestOpenAIProvider_Generate(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1760000000,
			"model": "gpt-4.1-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "Here is your chart.",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {
							"name": "showChart",
							"arguments": "{\"chartType\":\"line\",\"timeRange\":\"month\",\"metric\":\"calories\"}"
						}
					}]
				}
			}]
		}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIOptions{
		APIKey:  "test-key",
		Model:   "gpt-4.1-mini",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Params:  DefaultGenerationParams,
	}, nil)

	resp, err := p.Generate(context.Background(), GenerateRequest{Prompt: "show calories"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if resp.Text != "Here is your chart." {
		t.Errorf("text = %q", resp.Text)
	}
	want := []toolcall.FunctionCall{{
		Name: "showChart",
		Args: map[string]any{"chartType": "line", "timeRange": "month", "metric": "calories"},
	}}
	if diff := cmp.Diff(want, resp.FunctionCalls); diff != "" {
		t.Errorf("function calls mismatch (-want +got):\n%s", diff)
	}

	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(msgs))
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("first message role = %v", first["role"])
	}
	if tools, _ := captured["tools"].([]any); len(tools) != len(Tools) {
		t.Errorf("expected %d tools declared, got %d", len(Tools), len(tools))
	}
	if captured["temperature"] != 0.7 {
		t.Errorf("temperature = %v", captured["temperature"])
	}
}

func TestOpenAIProvider_ServiceErrorIsWrapped(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIOptions{APIKey: "k", BaseURL: srv.URL, Params: DefaultGenerationParams}, nil)

	_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestGeminiProvider_ServiceErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"bad request","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), GeminiOptions{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Params:  DefaultGenerationParams,
	}, nil)
	if err != nil {
		t.Fatalf("NewGeminiProvider: %v", err)
	}

	_, err = p.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGeminiConfig(t *testing.T) {
	cfg := geminiConfig(DefaultGenerationParams)

	if *cfg.Temperature != 0.7 || *cfg.TopK != 40 || cfg.MaxOutputTokens != 2048 {
		t.Fatalf("unexpected sampling params: temp=%v topK=%v max=%v", *cfg.Temperature, *cfg.TopK, cfg.MaxOutputTokens)
	}
	if len(cfg.Tools) != 1 {
		t.Fatalf("expected one tool group, got %d", len(cfg.Tools))
	}

	decls := cfg.Tools[0].FunctionDeclarations
	names := make([]string, 0, len(decls))
	for _, d := range decls {
		names = append(names, d.Name)
	}
	if diff := cmp.Diff([]string{"showChart", "showActivity", "showWorkoutHistory"}, names); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}

	metric := decls[0].Parameters.Properties["metric"]
	if diff := cmp.Diff([]string{"steps", "calories", "exercise", "workouts", "standHours"}, metric.Enum); diff != "" {
		t.Errorf("metric enum mismatch (-want +got):\n%s", diff)
	}
}

func TestNewProvider_Mode(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{mode: config.AIModeMock, want: "mock"},
		{mode: config.AIModeOpenAI, want: "openai"},
		{mode: config.AIModeGemini, want: "gemini"},
		{mode: "", want: "mock"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			p, err := NewProvider(context.Background(), config.AIConfig{
				Mode:         tt.mode,
				GeminiAPIKey: "g",
				OpenAIAPIKey: "o",
			}, nil)
			if err != nil {
				t.Fatalf("NewProvider: %v", err)
			}
			if p.Name() != tt.want {
				t.Fatalf("provider = %s, want %s", p.Name(), tt.want)
			}
		})
	}
}
