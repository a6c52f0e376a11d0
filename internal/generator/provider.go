// Package generator — адаптер внешнего генератора текста. Генерирует описания
// заданий, ивентов, признаний и вопросы викторины. Любая ошибка здесь
// возвращается вызывающему сервису, который подставляет запасной вариант.
package generator

import (
	"context"
	"fmt"

	"serotonyl.ru/reputation-bot/internal/common"
	"serotonyl.ru/reputation-bot/internal/config"
)

// Provider — источник сырого текста ответа модели.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// disabledProvider используется при AI_PROVIDER=off.
type disabledProvider struct{}

func (disabledProvider) Complete(context.Context, string, string) (string, error) {
	return "", common.ErrGeneratorDisabled
}

// NewProvider выбирает провайдера по конфигурации.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.AIProvider {
	case config.AIProviderOpenAI:
		return NewOpenAIProvider(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel), nil
	case config.AIProviderPollinations:
		return NewPollinationsProvider(cfg.AIBaseURL, cfg.AIModel, cfg.AITimeout), nil
	case config.AIProviderOff:
		return disabledProvider{}, nil
	default:
		return nil, fmt.Errorf("неподдерживаемый AI_PROVIDER: %s", cfg.AIProvider)
	}
}

// transientStatus сообщает, стоит ли повторять запрос с таким HTTP-кодом.
func transientStatus(code int) bool {
	return code == 429 || code == 408 || code >= 500
}
