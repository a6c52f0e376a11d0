// Package score реализует репутационный счёт участника в сообществе.
// models.go описывает записи счёта, историю изменений и выборки.
package score

import "time"

// Key идентифицирует счёт: пользователь в конкретном сообществе.
type Key struct {
	UserID      int64
	CommunityID int64
}

// Record — текущий счёт. Отсутствие записи равносильно счёту 0.
type Record struct {
	UserID       int64     `db:"user_id"`
	CommunityID  int64     `db:"community_id"`
	DisplayName  string    `db:"display_name"`
	Score        int64     `db:"score"`
	TotalChanges int64     `db:"total_changes"`
	LastUpdated  time.Time `db:"last_updated"`
}

// HistoryEntry — неизменяемая запись об изменении счёта.
// NewScore всегда равен PreviousScore + Delta.
type HistoryEntry struct {
	ID            int64     `db:"id"`
	UserID        int64     `db:"user_id"`
	CommunityID   int64     `db:"community_id"`
	Delta         int64     `db:"delta"`
	PreviousScore int64     `db:"previous_score"`
	NewScore      int64     `db:"new_score"`
	Reason        string    `db:"reason"`
	SourceSnippet string    `db:"source_snippet"` // фрагмент сообщения-источника, может быть пустым
	CreatedAt     time.Time `db:"created_at"`
}

// Update — запрос на изменение счёта.
type Update struct {
	UserID        int64
	CommunityID   int64
	Delta         int64
	Reason        string
	DisplayName   string // необязательно, обновляет имя в таблице лидеров
	SourceSnippet string // необязательно
	KeepZero      bool   // записать изменение даже при нулевой дельте
}

// Change — результат коммита, достаточный для уведомления без повторных запросов.
type Change struct {
	UserID      int64
	CommunityID int64
	DisplayName string
	NewScore    int64
	Delta       int64 // дельта после трансформации ивентом
	RawDelta    int64 // дельта до трансформации
	Reason      string
	Committed   bool // false — изменение поглощено (нулевая дельта), история не тронута
}

// LeaderboardEntry — строка таблицы лидеров.
type LeaderboardEntry struct {
	UserID      int64  `db:"user_id"`
	DisplayName string `db:"display_name"`
	Score       int64  `db:"score"`
}

// AggregateStats — сводка по сообществу.
type AggregateStats struct {
	Count        int64   `db:"count"`
	Mean         float64 `db:"mean"`
	Max          int64   `db:"max"`
	Min          int64   `db:"min"`
	TotalChanges int64   `db:"total_changes"`
}

// GlobalCommunity — при передаче в GetLeaderboard выбирает глобальную таблицу.
const GlobalCommunity int64 = 0

// snippetLimit — максимум рун фрагмента сообщения в истории.
const snippetLimit = 100
