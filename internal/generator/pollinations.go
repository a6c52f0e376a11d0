package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"serotonyl.ru/reputation-bot/internal/common"
)

const pollinationsURL = "https://text.pollinations.ai/openai"

// PollinationsProvider — бесплатный OpenAI-подобный эндпоинт без ключа.
type PollinationsProvider struct {
	client *http.Client
	url    string
	model  string
}

// NewPollinationsProvider создаёт провайдера. Пустой url — публичный эндпоинт.
func NewPollinationsProvider(url, model string, timeout time.Duration) *PollinationsProvider {
	if url == "" {
		url = pollinationsURL
	}
	if model == "" {
		model = "openai"
	}
	return &PollinationsProvider{
		client: &http.Client{Timeout: timeout},
		url:    url,
		model:  model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p *PollinationsProvider) Complete(ctx context.Context, system, user string) (string, error) {
	payload := map[string]interface{}{
		"model": p.model,
		"messages": []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		"temperature": 1,
		"private":     true,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", fmt.Errorf("pollinations: %v: %w", err, common.ErrTransient)
		}
		return "", fmt.Errorf("pollinations: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("pollinations: чтение ответа: %v: %w", err, common.ErrTransient)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("pollinations http %d: %s", resp.StatusCode, common.Truncate(string(body), 200))
		if transientStatus(resp.StatusCode) {
			return "", fmt.Errorf("%v: %w", err, common.ErrTransient)
		}
		return "", err
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return "", fmt.Errorf("pollinations вернул html: %w", common.ErrMalformedResponse)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("pollinations: %v: %w", err, common.ErrMalformedResponse)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("pollinations: пустой список choices: %w", common.ErrMalformedResponse)
	}
	return parsed.Choices[0].Message.Content, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
