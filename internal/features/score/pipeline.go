// Package score — pipeline.go: путь любого изменения счёта.
// Сырая дельта → трансформация активным ивентом → коммит → наблюдатели.
package score

import (
	"context"
	"sync"
)

// Transformer трансформирует сырую дельту с учётом активного ивента.
type Transformer interface {
	ApplyEventEffects(communityID int64, rawDelta int64) int64
}

// Observer получает каждое закоммиченное изменение.
type Observer interface {
	ScoreChanged(ctx context.Context, change Change)
}

// ObserverFunc адаптирует функцию к Observer.
type ObserverFunc func(ctx context.Context, change Change)

// ScoreChanged вызывает f.
func (f ObserverFunc) ScoreChanged(ctx context.Context, change Change) { f(ctx, change) }

// Pipeline — единый путь изменения счёта для всех компонентов.
type Pipeline struct {
	ledger    *Ledger
	transform Transformer

	mu        sync.RWMutex
	observers []Observer
}

// NewPipeline создаёт пайплайн. transform может быть nil (тождественная трансформация).
func NewPipeline(ledger *Ledger, transform Transformer) *Pipeline {
	return &Pipeline{ledger: ledger, transform: transform}
}

// SetTransformer подключает трансформацию после создания пайплайна.
// Оркестратор ивентов сам начисляет награды через пайплайн, поэтому
// подключается вторым шагом.
func (p *Pipeline) SetTransformer(t Transformer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transform = t
}

// Observe добавляет наблюдателя.
func (p *Pipeline) Observe(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// Apply трансформирует дельту и коммитит её через Ledger.
// Если трансформация обнулила дельту, изменение не записывается.
func (p *Pipeline) Apply(ctx context.Context, u Update) (Change, error) {
	p.mu.RLock()
	transform := p.transform
	p.mu.RUnlock()

	raw := u.Delta
	if transform != nil {
		u.Delta = transform.ApplyEventEffects(u.CommunityID, raw)
	}

	change, err := p.ledger.UpdateScore(ctx, u)
	if err != nil {
		return Change{}, err
	}
	change.RawDelta = raw

	if !change.Committed {
		return change, nil
	}

	p.mu.RLock()
	observers := append([]Observer(nil), p.observers...)
	p.mu.RUnlock()
	for _, o := range observers {
		o.ScoreChanged(ctx, change)
	}
	return change, nil
}

// Ledger возвращает нижележащий реестр для чтения.
func (p *Pipeline) Ledger() *Ledger { return p.ledger }
