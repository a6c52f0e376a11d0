// Package bot — announcer.go отправляет объявления ивентов и уведомления
// о выполненных заданиях в темы сообщества.
package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/common"
	"serotonyl.ru/reputation-bot/internal/features/directives"
	"serotonyl.ru/reputation-bot/internal/features/score"
)

// Sender — часть API Telegram, нужная для отправки сообщений.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Announcer доставляет сообщения в темы сообщества.
type Announcer struct {
	api Sender
}

// NewAnnouncer создаёт отправителя объявлений.
func NewAnnouncer(api Sender) *Announcer {
	return &Announcer{api: api}
}

// Announce отправляет text в каждую тему из channelIDs (0 — общая тема).
// Ошибка отправки в одну тему не мешает остальным.
func (a *Announcer) Announce(ctx context.Context, communityID int64, channelIDs []int64, text string) {
	for _, channelID := range channelIDs {
		a.send(ctx, communityID, channelID, text)
	}
}

// TrackerCompleted сообщает в общую тему о выполненном задании.
func (a *Announcer) TrackerCompleted(ctx context.Context, t directives.Tracker, change score.Change) {
	name := change.DisplayName
	if name == "" {
		name = fmt.Sprintf("id%d", t.UserID)
	}
	text := fmt.Sprintf("✅ %s выполняет %s «%s»: %s",
		name, t.Kind.Title(), t.Description, common.FormatDelta(change.Delta))
	a.send(ctx, t.CommunityID, 0, text)
}

func (a *Announcer) send(ctx context.Context, chatID, threadID int64, text string) {
	params := &telego.SendMessageParams{
		ChatID:          tu.ID(chatID),
		MessageThreadID: int(threadID),
		Text:            text,
	}
	if _, err := a.api.SendMessage(ctx, params); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat_id":   chatID,
			"thread_id": threadID,
		}).Error("Ошибка отправки сообщения")
	}
}
