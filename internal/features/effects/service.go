// Package effects — service.go реализует реестр эффектов.
// Все выборки фильтруют по времени в момент вызова, поэтому корректность
// не зависит от того, успела ли пройти периодическая очистка.
package effects

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/common"
)

// userEffects — эффекты одного пользователя под собственной блокировкой.
type userEffects struct {
	mu      sync.Mutex
	effects []*Effect
}

// Registry — владелец всех эффектов. Единственный, кто их меняет.
type Registry struct {
	clock clock.Clock

	mu    sync.RWMutex // защищает только карту users
	users map[int64]*userEffects
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(clk clock.Clock) *Registry {
	return &Registry{
		clock: clk,
		users: make(map[int64]*userEffects),
	}
}

func (r *Registry) bucket(userID int64) *userEffects {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[userID]
}

// withBucket вызывает f под блокировкой корзины пользователя, создавая её
// при необходимости. Блокировка карты держится всё время, чтобы Sweep
// не удалил корзину между поиском и изменением.
func (r *Registry) withBucket(userID int64, f func(b *userEffects)) {
	r.mu.RLock()
	if b, ok := r.users[userID]; ok {
		b.mu.Lock()
		f(b)
		b.mu.Unlock()
		r.mu.RUnlock()
		return
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.users[userID]
	if !ok {
		b = &userEffects{}
		r.users[userID] = b
	}
	b.mu.Lock()
	f(b)
	b.mu.Unlock()
}

// newEffect проверяет аргументы и собирает эффект от текущего времени.
func (r *Registry) newEffect(userID, communityID int64, t Type, duration time.Duration, originalValue string, meta Metadata) (*Effect, error) {
	if !t.Valid() {
		return nil, common.ErrUnknownEffectType
	}
	if duration <= 0 {
		return nil, common.ErrInvalidDuration
	}
	if err := meta.validate(t); err != nil {
		return nil, err
	}
	now := r.clock.Now()
	return &Effect{
		ID:            uuid.NewString(),
		UserID:        userID,
		CommunityID:   communityID,
		Type:          t,
		AppliedAt:     now,
		ExpiresAt:     now.Add(duration),
		OriginalValue: originalValue,
		Metadata:      meta,
	}, nil
}

func logApplied(e *Effect) {
	log.WithFields(log.Fields{
		"user_id":   e.UserID,
		"effect_id": e.ID,
		"type":      e.Type,
		"reason":    e.Metadata.Reason,
		"duration":  e.ExpiresAt.Sub(e.AppliedAt),
	}).Debug("Эффект применён")
}

// ApplyEffect создаёт эффект на duration и возвращает его ID.
func (r *Registry) ApplyEffect(userID, communityID int64, t Type, duration time.Duration, originalValue string, meta Metadata) (string, error) {
	e, err := r.newEffect(userID, communityID, t, duration, originalValue, meta)
	if err != nil {
		return "", err
	}
	r.withBucket(userID, func(b *userEffects) {
		b.effects = append(b.effects, e)
	})
	logApplied(e)
	return e.ID, nil
}

// TryApply ставит кулдаун типа t, только если у пользователя нет
// действующего эффекта того же типа с тем же meta.Reason. Проверка и
// вставка идут под одной блокировкой. При активном кулдауне эффект не
// создаётся, ID пустой, а Cooldown содержит остаток.
func (r *Registry) TryApply(userID, communityID int64, t Type, duration time.Duration, meta Metadata) (string, Cooldown, error) {
	e, err := r.newEffect(userID, communityID, t, duration, "", meta)
	if err != nil {
		return "", Cooldown{}, err
	}
	filter := &Filter{Reason: meta.Reason}

	var cd Cooldown
	r.withBucket(userID, func(b *userEffects) {
		cd = cooldownOf(b.effects, t, filter, e.AppliedAt)
		if !cd.OnCooldown {
			b.effects = append(b.effects, e)
		}
	})
	if cd.OnCooldown {
		return "", cd, nil
	}
	logApplied(e)
	return e.ID, Cooldown{}, nil
}

// RemoveEffect удаляет эффект по ID. Возвращает false, если его нет.
func (r *Registry) RemoveEffect(userID int64, effectID string) bool {
	b := r.bucket(userID)
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.effects {
		if e.ID == effectID {
			b.effects = append(b.effects[:i], b.effects[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveEffectsByType удаляет все эффекты типа и возвращает их число.
func (r *Registry) RemoveEffectsByType(userID int64, t Type) int {
	b := r.bucket(userID)
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.effects[:0]
	removed := 0
	for _, e := range b.effects {
		if e.Type == t {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	b.effects = kept
	return removed
}

// GetActiveEffects возвращает копии действующих эффектов пользователя.
func (r *Registry) GetActiveEffects(userID int64) []Effect {
	return r.collect(userID, func(*Effect) bool { return true })
}

// GetEffectsByType возвращает действующие эффекты заданного типа.
func (r *Registry) GetEffectsByType(userID int64, t Type) []Effect {
	return r.collect(userID, func(e *Effect) bool { return e.Type == t })
}

func (r *Registry) collect(userID int64, keep func(*Effect) bool) []Effect {
	b := r.bucket(userID)
	if b == nil {
		return nil
	}
	now := r.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Effect
	for _, e := range b.effects {
		if e.Active(now) && keep(e) {
			out = append(out, *e)
		}
	}
	return out
}

// IsOnCooldown проверяет, есть ли действующий эффект типа t, подходящий под filter.
// TimeLeft — до истечения самого долгого подходящего эффекта.
func (r *Registry) IsOnCooldown(userID int64, t Type, filter *Filter) Cooldown {
	b := r.bucket(userID)
	if b == nil {
		return Cooldown{}
	}
	now := r.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	return cooldownOf(b.effects, t, filter, now)
}

func cooldownOf(list []*Effect, t Type, filter *Filter, now time.Time) Cooldown {
	var res Cooldown
	for _, e := range list {
		if e.Type != t || !e.Active(now) || !filter.matches(e) {
			continue
		}
		res.OnCooldown = true
		if left := e.ExpiresAt.Sub(now); left > res.TimeLeft {
			res.TimeLeft = left
		}
	}
	return res
}

// Sweep удаляет истёкшие эффекты и возвращает их число.
func (r *Registry) Sweep() int {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for userID, b := range r.users {
		b.mu.Lock()
		kept := b.effects[:0]
		for _, e := range b.effects {
			if e.Active(now) {
				kept = append(kept, e)
			} else {
				removed++
			}
		}
		b.effects = kept
		empty := len(kept) == 0
		b.mu.Unlock()
		if empty {
			delete(r.users, userID)
		}
	}

	if removed > 0 {
		log.WithField("removed", removed).Debug("Очистка эффектов")
	}
	return removed
}
