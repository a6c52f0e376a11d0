// Package activity описывает словарь активности и раздаёт уведомления
// подписчикам (трекеры директив, мини-игры событий).
package activity

// Type — категория активности. Закрытый словарь.
type Type string

const (
	MessageSent        Type = "message-sent"
	KeywordUsed        Type = "keyword-used"
	ReactionAdded      Type = "reaction-added"
	UserMentioned      Type = "user-mentioned"
	ScoreChanged       Type = "score-changed"
	HelpedOtherUser    Type = "helped-other-user"
	DirectiveCompleted Type = "directive-completed"
)

// Meta — сведения об источнике активности. Все поля необязательны.
type Meta struct {
	Keyword   string // для KeywordUsed
	Text      string // текст сообщения, для мини-игры на скорость
	ChannelID int64  // тема форума (0 — общая)
	MessageID int64  // для дедупликации в квотах
}

// Notification — одно уже классифицированное событие активности.
type Notification struct {
	UserID      int64
	CommunityID int64
	Type        Type
	Amount      int64 // для ScoreChanged может быть отрицательным
	Meta        Meta
}
