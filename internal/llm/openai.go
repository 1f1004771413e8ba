package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"fitpulse.app/coach/common/logger"
	"fitpulse.app/coach/core/config"
)

type openaiClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a ChatClient backed by the OpenAI API.
func NewOpenAIClient(cfg config.LLMConfig) (ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &openaiClient{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (c *openaiClient) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	params := openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            convertTurns(req.Turns),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		Temperature:         openai.Float(req.Temperature),
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(ctx, err)
	}

	slog.DebugContext(ctx, "chat completion finished",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return resp.Choices[0].Message.Content, nil
}

// Probe hits the model-listing endpoint as a capability check.
func (c *openaiClient) Probe(ctx context.Context) (int, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return 0, classify(ctx, err)
	}
	return len(page.Data), nil
}

func (c *openaiClient) Model() string {
	return c.model
}

// classify maps provider errors onto the package's error kinds. Each kind
// gets its own log line with full diagnostics; the user-facing message is
// decided upstream and is the same for all of them.
func classify(ctx context.Context, err error) error {
	var apierr *openai.Error
	if !errors.As(err, &apierr) {
		slog.ErrorContext(ctx, "model service transport failure", "error", err)
		return fmt.Errorf("model service: %w", err)
	}

	body := logger.Truncate(apierr.RawJSON(), 512)

	switch apierr.StatusCode {
	case http.StatusUnauthorized:
		slog.ErrorContext(ctx, "model service rejected credential",
			"status", apierr.StatusCode, "body", body)
		return ErrInvalidCredential
	case http.StatusPaymentRequired:
		slog.ErrorContext(ctx, "model service reports insufficient balance",
			"status", apierr.StatusCode, "body", body)
		return ErrInsufficientBalance
	case http.StatusNotFound:
		slog.ErrorContext(ctx, "model not found",
			"status", apierr.StatusCode, "body", body)
		return ErrModelNotFound
	default:
		slog.ErrorContext(ctx, "model service error",
			"status", apierr.StatusCode, "body", body)
		return &UpstreamError{StatusCode: apierr.StatusCode, Body: body}
	}
}

func convertTurns(turns []Turn) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))

	for _, turn := range turns {
		switch turn.Role {
		case RoleSystem:
			result = append(result, openai.SystemMessage(turn.Content))
		case RoleUser:
			result = append(result, openai.UserMessage(turn.Content))
		case RoleAssistant:
			result = append(result, openai.AssistantMessage(turn.Content))
		}
	}

	return result
}
