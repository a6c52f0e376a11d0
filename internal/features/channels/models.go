// Package channels хранит настройки мониторинга: какие темы форума
// в каком сообществе бот слушает и куда шлёт объявления.
package channels

import "time"

// Kind — назначение канала.
type Kind string

const (
	// KindAnnounce — сюда отправляются объявления ивентов.
	KindAnnounce Kind = "announce"
	// KindQuota — активность здесь засчитывается в квотные мини-игры.
	KindQuota Kind = "quota"
)

// Valid сообщает, известен ли вид канала.
func (k Kind) Valid() bool {
	return k == KindAnnounce || k == KindQuota
}

// Channel — один отслеживаемый канал (тема форума). ChannelID 0 — общая тема.
type Channel struct {
	CommunityID int64     `db:"community_id"`
	ChannelID   int64     `db:"channel_id"`
	Kind        Kind      `db:"kind"`
	CreatedAt   time.Time `db:"created_at"`
}
