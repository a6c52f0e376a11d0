// Package confessions — шуточные «признания» участников. Текст придумывает
// генератор, при его недоступности берётся запасной. За признание
// начисляется небольшая награда, повторить можно после кулдауна.
package confessions

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/common"
	"serotonyl.ru/reputation-bot/internal/features/effects"
	"serotonyl.ru/reputation-bot/internal/features/score"
	"serotonyl.ru/reputation-bot/internal/generator"
)

var fallbackConfessions = []string{
	"Признаюсь: я читаю чат чаще, чем пишу в него.",
	"Признаюсь: я ставлю реакции, не дочитав сообщение.",
	"Признаюсь: однажды я ответил «согласен», не поняв вопроса.",
	"Признаюсь: я до сих пор не знаю, как тут закрепить сообщение.",
	"Признаюсь: мой любимый смайлик тот, который я ставлю по ошибке.",
}

// Generator придумывает признания.
type Generator interface {
	Confession(ctx context.Context, uc generator.Context) (*generator.Confession, error)
}

// Rewarder начисляет награды через общий путь изменения счёта.
type Rewarder interface {
	Apply(ctx context.Context, u score.Update) (score.Change, error)
}

// Cooldowns — реестр эффектов.
type Cooldowns interface {
	TryApply(userID, communityID int64, t effects.Type, duration time.Duration, meta effects.Metadata) (string, effects.Cooldown, error)
}

// Result — признание и изменение счёта за него.
type Result struct {
	Text      string
	Generated bool
	Change    score.Change
}

// Service выдаёт признания.
type Service struct {
	gen      Generator
	rewarder Rewarder
	effects  Cooldowns
	cooldown time.Duration
	reward   int64
	intn     func(n int) int
}

// NewService создаёт сервис признаний. gen может быть nil.
func NewService(gen Generator, rewarder Rewarder, effects Cooldowns, cooldown time.Duration, reward int64) *Service {
	return &Service{
		gen:      gen,
		rewarder: rewarder,
		effects:  effects,
		cooldown: cooldown,
		reward:   reward,
		intn:     rand.IntN,
	}
}

func cooldownReason(communityID int64) string {
	return fmt.Sprint(communityID)
}

// Confess выдаёт признание, начисляет награду и ставит кулдаун.
// Ошибку возвращает только кулдаун или сбой записи счёта.
func (s *Service) Confess(ctx context.Context, userID, communityID int64, displayName string) (Result, error) {
	// кулдаун занимается до генерации: параллельный запрос получит отказ
	_, cd, err := s.effects.TryApply(userID, communityID, effects.TypeConfessionCooldown, s.cooldown,
		effects.Metadata{Reason: cooldownReason(communityID)})
	if err != nil {
		return Result{}, err
	}
	if cd.OnCooldown {
		return Result{}, fmt.Errorf("следующее признание через %s: %w", common.FormatDuration(cd.TimeLeft), common.ErrOnCooldown)
	}

	res := Result{}
	if s.gen != nil {
		c, err := s.gen.Confession(ctx, generator.Context{DisplayName: displayName})
		if err == nil {
			res.Text = c.Text
			res.Generated = true
		} else {
			log.WithError(err).WithField("user_id", userID).Warn("Генератор признаний недоступен, берём запасное")
		}
	}
	if res.Text == "" {
		res.Text = fallbackConfessions[s.intn(len(fallbackConfessions))]
	}

	change, err := s.rewarder.Apply(ctx, score.Update{
		UserID:        userID,
		CommunityID:   communityID,
		Delta:         s.reward,
		Reason:        "Признание",
		DisplayName:   displayName,
		SourceSnippet: res.Text,
	})
	if err != nil {
		return Result{}, err
	}
	res.Change = change

	log.WithFields(log.Fields{
		"user_id":      userID,
		"community_id": communityID,
		"generated":    res.Generated,
	}).Info("Признание")

	return res, nil
}
