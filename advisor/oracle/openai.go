package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const systemPrompt = "You are a CPU scheduling advisor. Reply with exactly one line of the form PID:<number>."

// OpenAIClient calls an OpenAI-compatible chat completions endpoint
// (vLLM, llama.cpp server, Ollama's /v1, or the hosted API).
type OpenAIClient struct {
	client *openai.Client
	params Params
	tracer trace.Tracer
}

// NewOpenAIClient creates a client for p.URL. The URL is the server root;
// "/v1" is appended unless already present.
func NewOpenAIClient(p Params) *OpenAIClient {
	cfg := openai.DefaultConfig(p.APIKey)
	base := strings.TrimRight(p.URL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	cfg.BaseURL = base
	cfg.HTTPClient = &http.Client{Timeout: p.Timeout}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), params: p, tracer: p.tracer()}
}

// Generate implements advisor.Generator.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "OpenAIClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.params.Model))

	req := openai.ChatCompletionRequest{
		Model: o.params.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.params.Temperature,
		MaxTokens:   o.params.MaxTokens,
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("chat completion returned no choices")
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
