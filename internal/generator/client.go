package generator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"serotonyl.ru/reputation-bot/internal/common"
)

// Options — настройки Client.
type Options struct {
	Timeout           time.Duration // на одну попытку
	MaxAttempts       int
	RequestsPerMinute int // 0 — без ограничения
	// BackOff создаёт стратегию пауз между попытками. nil — экспоненциальная.
	BackOff func() backoff.BackOff
}

// Client оборачивает Provider: ограничение частоты, повторы временных
// ошибок, извлечение JSON и проверка схемы.
type Client struct {
	provider    Provider
	limiter     *rate.Limiter
	timeout     time.Duration
	maxAttempts uint
	newBackOff  func() backoff.BackOff
}

// NewClient создаёт клиента генератора.
func NewClient(p Provider, opts Options) *Client {
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
		burst = max(1, opts.RequestsPerMinute/4)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 25 * time.Second
	}
	if opts.BackOff == nil {
		opts.BackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 10 * time.Second
			return b
		}
	}
	return &Client{
		provider:    p,
		limiter:     rate.NewLimiter(limit, burst),
		timeout:     opts.Timeout,
		maxAttempts: uint(opts.MaxAttempts),
		newBackOff:  opts.BackOff,
	}
}

// Enabled сообщает, настроен ли генератор.
func (c *Client) Enabled() bool {
	if c == nil || c.provider == nil {
		return false
	}
	_, off := c.provider.(disabledProvider)
	return !off
}

// complete запрашивает ответ и возвращает извлечённый JSON-объект.
// Повторяются только временные ошибки.
func (c *Client) complete(ctx context.Context, kind, user string) (string, error) {
	if !c.Enabled() {
		return "", common.ErrGeneratorDisabled
	}

	attempt := 0
	op := func() (string, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return "", backoff.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		raw, err := c.provider.Complete(callCtx, systemPrompt, user)
		if err != nil {
			if errors.Is(err, common.ErrTransient) {
				log.WithFields(log.Fields{
					"kind":    kind,
					"attempt": attempt,
				}).WithError(err).Warn("Временная ошибка генератора, повторяем")
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		obj, err := ExtractJSONObject(raw)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		return obj, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxAttempts),
	)
}

// Task генерирует задание. kind — «дневное задание» или «недельную цель».
func (c *Client) Task(ctx context.Context, kind string, rules TaskRules, uc Context) (*Task, error) {
	raw, err := c.complete(ctx, "task", taskPrompt(kind, rules, uc))
	if err != nil {
		return nil, err
	}
	return ParseTask(raw, rules)
}

// Campaign генерирует ивент.
func (c *Client) Campaign(ctx context.Context) (*Campaign, error) {
	raw, err := c.complete(ctx, "campaign", campaignPrompt)
	if err != nil {
		return nil, err
	}
	return ParseCampaign(raw)
}

// Quiz генерирует вопрос викторины.
func (c *Client) Quiz(ctx context.Context) (*Quiz, error) {
	raw, err := c.complete(ctx, "quiz", quizPrompt)
	if err != nil {
		return nil, err
	}
	return ParseQuiz(raw)
}

// Confession генерирует признание.
func (c *Client) Confession(ctx context.Context, uc Context) (*Confession, error) {
	raw, err := c.complete(ctx, "confession", confessionPrompt(uc))
	if err != nil {
		return nil, err
	}
	return ParseConfession(raw)
}
