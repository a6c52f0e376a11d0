// Package events — ивенты сообществ: временные модификаторы начисления
// очков и мини-игры (викторина на скорость, коллективная квота).
// models.go описывает ивент и его эффект.
package events

import (
	"time"

	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/features/activity"
)

// Предопределённые типы ивентов.
const (
	TypeDoublePoints = "double_points"
	TypeGoldenHour   = "golden_hour"
	TypeHarmony      = "harmony"
	TypeTriviaRush   = "trivia_rush"
	TypeTeamQuota    = "team_quota"

	// DynamicPrefix — префикс типа сгенерированного ивента.
	DynamicPrefix = "dynamic:"
)

// EffectKind — вариант эффекта ивента.
type EffectKind int

const (
	// ScoreModifier умножает каждую дельту на Multiplier.
	ScoreModifier EffectKind = iota + 1
	// BehaviorRule меняет правила начисления (сейчас только запрет минусов).
	BehaviorRule
	// SpecialTask запускает мини-игру и не меняет дельты.
	SpecialTask
)

// Effect — эффект ивента. Заполнено только поле, соответствующее Kind.
type Effect struct {
	Kind          EffectKind
	Multiplier    float64
	BlockNegative bool
	Task          *Task
}

// Task — мини-игра. Заполнено ровно одно из Race и Quota.
type Task struct {
	Prompt string
	Reward int64
	Race   *Race
	Quota  *Quota
}

// Race — побеждает первый, чьё сообщение содержит ответ.
type Race struct {
	Answer string
}

// Quota — сообщество вместе набирает Threshold действий типа Activity.
type Quota struct {
	Activity  activity.Type
	Threshold int
	Channels  []int64 // пусто — любые каналы сообщества
}

// Campaign — ивент сообщества. Неизменяем после запуска.
type Campaign struct {
	ID          string
	CommunityID int64
	Type        string
	Title       string
	Description string
	Effect      Effect
	StartedAt   time.Time
	EndTime     time.Time
}

// Active сообщает, идёт ли ивент в момент now.
func (c *Campaign) Active(now time.Time) bool {
	return c.EndTime.After(now)
}

// live — ивент вместе с состоянием мини-игры.
// Поля после campaign меняются только под блокировкой сообщества.
type live struct {
	campaign  Campaign
	timer     *clock.Timer
	announced []int64 // каналы, куда ушло объявление о старте

	closed  bool
	claimed bool           // викторина: победитель уже есть
	tally   int            // квота: засчитано действий
	seen    map[int64]bool // квота: учтённые сообщения
}
