// Package thanks — благодарность ответом на сообщение. Получатель получает
// очки через общий путь изменения счёта и активность «помог другому».
// Один и тот же участник может благодарить одного и того же адресата
// не чаще раза за кулдаун.
package thanks

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/common"
	"serotonyl.ru/reputation-bot/internal/features/activity"
	"serotonyl.ru/reputation-bot/internal/features/effects"
	"serotonyl.ru/reputation-bot/internal/features/score"
)

// Rewarder начисляет очки через общий путь изменения счёта.
type Rewarder interface {
	Apply(ctx context.Context, u score.Update) (score.Change, error)
}

// Cooldowns — реестр эффектов.
type Cooldowns interface {
	TryApply(userID, communityID int64, t effects.Type, duration time.Duration, meta effects.Metadata) (string, effects.Cooldown, error)
}

// Emitter публикует активность.
type Emitter interface {
	Dispatch(ctx context.Context, n activity.Notification)
}

// Thanks — одна благодарность.
type Thanks struct {
	FromUserID  int64
	ToUserID    int64
	CommunityID int64
	ToName      string // имя получателя для таблицы лидеров
	Text        string // текст благодарности для истории
	ChannelID   int64
	MessageID   int64
}

// Service выдаёт очки за благодарности.
type Service struct {
	rewarder Rewarder
	effects  Cooldowns
	emitter  Emitter
	points   int64
	cooldown time.Duration
}

// NewService создаёт сервис. emitter может быть nil.
func NewService(rewarder Rewarder, effects Cooldowns, emitter Emitter, points int64, cooldown time.Duration) *Service {
	return &Service{
		rewarder: rewarder,
		effects:  effects,
		emitter:  emitter,
		points:   points,
		cooldown: cooldown,
	}
}

// pairReason различает кулдауны по получателю внутри сообщества.
func pairReason(communityID, toUserID int64) string {
	return fmt.Sprintf("%d:%d", communityID, toUserID)
}

// Give начисляет очки получателю. Возвращает ErrSelfThanks, ErrOnCooldown
// или ошибку записи счёта.
func (s *Service) Give(ctx context.Context, t Thanks) (score.Change, error) {
	if t.FromUserID == t.ToUserID {
		return score.Change{}, common.ErrSelfThanks
	}

	reason := pairReason(t.CommunityID, t.ToUserID)
	_, cd, err := s.effects.TryApply(t.FromUserID, t.CommunityID, effects.TypeThanksCooldown, s.cooldown,
		effects.Metadata{Reason: reason})
	if err != nil {
		return score.Change{}, err
	}
	if cd.OnCooldown {
		return score.Change{}, fmt.Errorf("снова поблагодарить можно через %s: %w",
			common.FormatDuration(cd.TimeLeft), common.ErrOnCooldown)
	}

	change, err := s.rewarder.Apply(ctx, score.Update{
		UserID:        t.ToUserID,
		CommunityID:   t.CommunityID,
		Delta:         s.points,
		Reason:        "Благодарность",
		DisplayName:   t.ToName,
		SourceSnippet: t.Text,
	})
	if err != nil {
		return score.Change{}, err
	}

	if s.emitter != nil {
		s.emitter.Dispatch(ctx, activity.Notification{
			UserID:      t.ToUserID,
			CommunityID: t.CommunityID,
			Type:        activity.HelpedOtherUser,
			Amount:      1,
			Meta:        activity.Meta{ChannelID: t.ChannelID, MessageID: t.MessageID},
		})
	}

	log.WithFields(log.Fields{
		"from_user_id": t.FromUserID,
		"to_user_id":   t.ToUserID,
		"community_id": t.CommunityID,
		"delta":        change.Delta,
	}).Info("Благодарность")

	return change, nil
}
