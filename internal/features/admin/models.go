// Package admin — доступ к админ-командам: постоянные администраторы из
// ADMIN_IDS и временные сессии по паролю (/login в личке).
// models.go описывает сессию и параметры хеширования.
package admin

import "time"

const (
	// SessionTTL — срок жизни сессии после входа.
	SessionTTL = 24 * time.Hour
	// MaxAttempts — неудачных попыток за AttemptWindow до блокировки.
	MaxAttempts = 3
	// AttemptWindow — окно подсчёта неудачных попыток.
	AttemptWindow = time.Hour
)

// Session — активная сессия администратора.
type Session struct {
	UserID          int64
	AuthenticatedAt time.Time
	ExpiresAt       time.Time
}

// HashParams — параметры Argon2id. Сохраняются в самом хеше.
type HashParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
}

// DefaultHashParams — параметры для новых хешей (64 MB, 3 прохода).
var DefaultHashParams = HashParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	KeyLength:   32,
}
