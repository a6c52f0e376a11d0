package events

import (
	"fmt"
	"strings"
	"time"

	"serotonyl.ru/reputation-bot/internal/common"
)

func startText(c Campaign, d time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 Ивент: %s\n%s\n", c.Title, c.Description)
	if t := c.Effect.Task; t != nil {
		switch {
		case t.Race != nil:
			fmt.Fprintf(&b, "\n❓ %s\nПервый правильный ответ: %s\n", t.Prompt, common.FormatDelta(t.Reward))
		case t.Quota != nil:
			fmt.Fprintf(&b, "\n🎯 Цель: %d сообщений вместе. Награда каждому: %s\n", t.Quota.Threshold, common.FormatDelta(t.Reward))
		}
	}
	fmt.Fprintf(&b, "⏳ Длительность: %s", common.FormatDuration(d))
	return b.String()
}

func endedText(c Campaign) string {
	return fmt.Sprintf("⛔ Ивент «%s» остановлен досрочно. Награды не выдаются.", c.Title)
}

// timeoutText — итоговое объявление ивента, закончившегося по времени.
func timeoutText(l *live) string {
	c := l.campaign
	t := c.Effect.Task
	switch {
	case t != nil && t.Race != nil:
		return fmt.Sprintf("⌛ Время вышло, никто не ответил. Правильный ответ: %s", t.Race.Answer)
	case t != nil && t.Quota != nil:
		return fmt.Sprintf("❌ Квота не выполнена: %d из %d. Награды не будет.", l.tally, t.Quota.Threshold)
	default:
		return fmt.Sprintf("🏁 Ивент «%s» завершён.", c.Title)
	}
}

func raceWonText(c Campaign, winner string, delta int64) string {
	if winner == "" {
		winner = "Участник"
	}
	return fmt.Sprintf("🏆 %s первым ответил правильно: %s! Награда: %s",
		winner, c.Effect.Task.Race.Answer, common.FormatDelta(delta))
}

func quotaReachedText(c Campaign, tally, rewarded int) string {
	return fmt.Sprintf("✅ Квота выполнена: %d из %d! Награду %s получают %d участников.",
		tally, c.Effect.Task.Quota.Threshold, common.FormatDelta(c.Effect.Task.Reward), rewarded)
}

// Describe — краткое описание ивента для команды /event.
func Describe(s Status) string {
	c := s.Campaign
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 %s\n%s\n", c.Title, c.Description)
	if t := c.Effect.Task; t != nil {
		switch {
		case t.Race != nil:
			fmt.Fprintf(&b, "❓ %s\n", t.Prompt)
		case t.Quota != nil:
			fmt.Fprintf(&b, "🎯 Прогресс: %d из %d\n", s.Tally, t.Quota.Threshold)
		}
	}
	fmt.Fprintf(&b, "⏳ Осталось: %s", common.FormatDuration(s.TimeLeft))
	return b.String()
}
