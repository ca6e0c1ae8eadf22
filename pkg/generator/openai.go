package generator

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultModel   = openai.GPT3Dot5Turbo
	DefaultTimeout = 60 * time.Second
)

type OpenAISettings struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	// Timeout bounds one completion call. Zero means DefaultTimeout.
	Timeout time.Duration
}

type OpenAI struct {
	client   *openai.Client
	settings OpenAISettings
}

var _ Generator = (*OpenAI)(nil)

func NewOpenAI(s OpenAISettings) (*OpenAI, error) {
	if s.APIKey == "" {
		return nil, errors.New("openai generator requires an API key")
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}

	config := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		config.BaseURL = s.BaseURL
	}

	return &OpenAI{
		client:   openai.NewClientWithConfig(config),
		settings: s,
	}, nil
}

func (o *OpenAI) makeRequest(systemInstruction string, userPrompt string) openai.ChatCompletionRequest {
	msgs := []openai.ChatCompletionMessage{}
	if systemInstruction != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	return openai.ChatCompletionRequest{
		Model:       o.settings.Model,
		Messages:    msgs,
		Temperature: o.settings.Temperature,
		MaxTokens:   o.settings.MaxTokens,
	}
}

func (o *OpenAI) Complete(ctx context.Context, systemInstruction string, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.settings.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, o.makeRequest(systemInstruction, userPrompt))
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", errors.Wrapf(ErrGeneration, "openai api error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", errors.Wrapf(ErrGeneration, "%v", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.Wrap(ErrGeneration, "no choices in completion response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.Debug().
		Str("model", resp.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("elapsed", time.Since(start)).
		Msg("Generated response")
	return text, nil
}
