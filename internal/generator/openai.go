package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"serotonyl.ru/reputation-bot/internal/common"
)

// OpenAIProvider ходит в любой OpenAI-совместимый API.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider создаёт провайдера. Пустой baseURL — api.openai.com.
// Повторы делает Client, поэтому встроенные повторы SDK выключены.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && transientStatus(apiErr.StatusCode) {
			return "", fmt.Errorf("openai http %d: %w", apiErr.StatusCode, common.ErrTransient)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("openai: %v: %w", err, common.ErrTransient)
		}
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: пустой список choices: %w", common.ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
