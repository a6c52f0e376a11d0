// Package effects хранит временные состояния пользователей: кулдауны,
// маркеры множителей, обратимые изменения (ник, таймаут, роль).
// models.go описывает типы эффектов и их метаданные.
package effects

import (
	"time"

	"serotonyl.ru/reputation-bot/internal/common"
)

// Type — тип эффекта. Закрытое перечисление.
type Type string

const (
	TypeNicknameChange          Type = "nickname_change"
	TypeTimeout                 Type = "timeout"
	TypeRoleGrant               Type = "role_grant"
	TypeCooldown                Type = "cooldown"
	TypeEventMultiplier         Type = "event_multiplier"
	TypeThanksCooldown          Type = "thanks_cooldown"
	TypeConfessionCooldown      Type = "confession_cooldown"
	TypeDirectiveRerollCooldown Type = "directive_reroll_cooldown"
)

var knownTypes = map[Type]bool{
	TypeNicknameChange:          true,
	TypeTimeout:                 true,
	TypeRoleGrant:               true,
	TypeCooldown:                true,
	TypeEventMultiplier:         true,
	TypeThanksCooldown:          true,
	TypeConfessionCooldown:      true,
	TypeDirectiveRerollCooldown: true,
}

// Valid сообщает, входит ли тип в перечисление.
func (t Type) Valid() bool { return knownTypes[t] }

// Metadata — закрытая схема метаданных эффекта.
type Metadata struct {
	// Reason различает несколько кулдаунов одного типа.
	Reason string
	// Multiplier используется только эффектом TypeEventMultiplier.
	Multiplier float64
}

// validate проверяет, что метаданные подходят к типу.
func (m Metadata) validate(t Type) error {
	if m.Multiplier != 0 && t != TypeEventMultiplier {
		return common.ErrInvalidEffectMetadata
	}
	if t == TypeEventMultiplier && m.Multiplier <= 0 {
		return common.ErrInvalidEffectMetadata
	}
	return nil
}

// Effect — временное состояние пользователя. Активен, пока ExpiresAt > now.
type Effect struct {
	ID            string
	UserID        int64
	CommunityID   int64
	Type          Type
	AppliedAt     time.Time
	ExpiresAt     time.Time
	OriginalValue string // исходное значение для обратимых изменений (старый ник и т.п.)
	Metadata      Metadata
}

// Active сообщает, действует ли эффект в момент now.
func (e *Effect) Active(now time.Time) bool {
	return e.ExpiresAt.After(now)
}

// Filter отбирает эффекты по метаданным. Пустой Reason совпадает с любым.
type Filter struct {
	Reason string
}

func (f *Filter) matches(e *Effect) bool {
	if f == nil || f.Reason == "" {
		return true
	}
	return e.Metadata.Reason == f.Reason
}

// Cooldown — результат проверки кулдауна.
type Cooldown struct {
	OnCooldown bool
	TimeLeft   time.Duration
}
