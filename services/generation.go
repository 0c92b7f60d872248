package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bellapacxx/bingo-coach/utils/apperrors"
)

// GenerationClient sends fixed instructions plus a JSON payload to the text
// generation service and decodes the JSON object it answers with into out.
// Every failure is an apperrors generation failure.
type GenerationClient interface {
	Generate(ctx context.Context, instructions string, payload any, out any) error
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature float64
	configured  bool
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.8
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.HTTPClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		configured:  cfg.APIKey != "",
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, instructions string, payload any, out any) error {
	if !c.configured {
		return apperrors.Generation(errors.New("OPENAI_API_KEY is not set"))
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Generation(fmt.Errorf("encode payload: %w", err))
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(string(body)),
		},
		Temperature: openai.Float(c.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return apperrors.Generation(fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return apperrors.Generation(errors.New("chat completion returned no choices"))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return apperrors.Generation(errors.New("chat completion returned empty content"))
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return apperrors.Generation(fmt.Errorf("decode model output: %w", err))
	}
	return nil
}

type result[T any] struct {
	val T
	err error
}

// await runs fn with a deadline. When the deadline passes first the call's
// context is cancelled and whatever it returns later is dropped.
func await[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- result[T]{v, err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, apperrors.Generation(ctx.Err())
	}
}
