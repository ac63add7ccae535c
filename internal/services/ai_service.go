package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"kb-research-report/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// LLMClient is the slice of the model provider the pipeline depends on.
// Implementations must honor the context deadline on every call.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Speech(ctx context.Context, text string) ([]byte, error)
}

// CompletionOptions tunes a single chat completion call
type CompletionOptions struct {
	Model    string // empty means the configured default model
	JSONMode bool   // force a JSON object response
}

// AIService wraps the OpenAI client with the service's defaults and a hard
// wall-clock timeout on every call so a hung provider cannot stall a worker.
type AIService struct {
	client *openai.Client
	config config.OpenAIConfig
}

// NewAIService creates a new AI service from the OpenAI configuration
func NewAIService(cfg config.OpenAIConfig) *AIService {
	return &AIService{
		client: openai.NewClient(cfg.APIKey),
		config: cfg,
	}
}

// Complete runs one chat completion and returns the raw message content
func (s *AIService) Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout())
	defer cancel()

	model := opts.Model
	if model == "" {
		model = s.config.Model
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(s.config.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if s.config.MaxTokens > 0 {
		req.MaxTokens = s.config.MaxTokens
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns one embedding vector per input text, in input order
func (s *AIService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout())
	defer cancel()

	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(s.config.EmbeddingModel),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Speech synthesizes one narration segment as WAV audio
func (s *AIService) Speech(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout())
	defer cancel()

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.config.TTSModel),
		Voice:          openai.SpeechVoice(s.config.TTSVoice),
		Input:          text,
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	return data, nil
}

func (s *AIService) callTimeout() time.Duration {
	if s.config.CallTimeout > 0 {
		return s.config.CallTimeout
	}
	return 120 * time.Second
}

// StripCodeFences removes a surrounding markdown code fence from LLM output.
// Models wrap JSON in ```json fences despite instructions not to.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag on the opening fence line
		firstLine := trimmed[:idx]
		if !strings.ContainsAny(firstLine, "{}[]") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
