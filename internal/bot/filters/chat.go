// Package filters решает, что бот делает с сообщением из конкретного чата.
package filters

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// Scope — как обрабатывать сообщения из чата.
type Scope int

const (
	// ScopeIgnored — каналы и прочие чаты, где бот молчит.
	ScopeIgnored Scope = iota
	// ScopePrivate — личка: только команды (вход админа, справка).
	ScopePrivate
	// ScopeGroup — группа без мониторинга: команды работают, активность не считается.
	ScopeGroup
	// ScopeMonitored — отслеживаемое сообщество: команды и активность.
	ScopeMonitored
)

// MonitorSource сообщает, отслеживается ли сообщество.
type MonitorSource interface {
	IsMonitored(communityID int64) bool
}

// ChatFilter определяет Scope по типу чата и настройкам мониторинга.
type ChatFilter struct {
	monitored MonitorSource
}

// NewChatFilter создаёт фильтр.
func NewChatFilter(monitored MonitorSource) *ChatFilter {
	return &ChatFilter{monitored: monitored}
}

// Scope возвращает режим обработки для чата.
func (f *ChatFilter) Scope(chat telego.Chat) Scope {
	switch chat.Type {
	case telego.ChatTypePrivate:
		return ScopePrivate
	case telego.ChatTypeGroup, telego.ChatTypeSupergroup:
		if f.monitored.IsMonitored(chat.ID) {
			return ScopeMonitored
		}
		return ScopeGroup
	default:
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   chat.ID,
			"chat_type": chat.Type,
		}).Trace("Чат проигнорирован")
		return ScopeIgnored
	}
}
