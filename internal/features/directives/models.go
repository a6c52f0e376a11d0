// Package directives — личные задания: дневные директивы и недельные цели.
// Прогресс копится из потока активности, награда выдаётся ровно один раз.
// models.go описывает задание и словарь типов.
package directives

import (
	"time"

	"serotonyl.ru/reputation-bot/internal/features/activity"
)

// Kind — класс задания.
type Kind string

const (
	Daily  Kind = "daily"
	Weekly Kind = "weekly"
)

// lifetime — срок жизни задания от создания.
func (k Kind) lifetime() time.Duration {
	if k == Weekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// TaskType — что нужно сделать.
type TaskType string

const (
	SendMessages    TaskType = "send_messages"
	UseKeyword      TaskType = "use_keyword"
	AddReactions    TaskType = "add_reactions"
	MentionUsers    TaskType = "mention_users"
	HelpOthers      TaskType = "help_others"
	GainScore       TaskType = "gain_score"
	CompleteDailies TaskType = "complete_dailies"
)

var (
	dailyTypes  = []TaskType{SendMessages, UseKeyword, AddReactions, MentionUsers, HelpOthers}
	weeklyTypes = []TaskType{SendMessages, GainScore, HelpOthers, CompleteDailies}
)

// activityFor — категория активности, которая двигает задание.
var activityFor = map[TaskType]activity.Type{
	SendMessages:    activity.MessageSent,
	UseKeyword:      activity.KeywordUsed,
	AddReactions:    activity.ReactionAdded,
	MentionUsers:    activity.UserMentioned,
	HelpOthers:      activity.HelpedOtherUser,
	GainScore:       activity.ScoreChanged,
	CompleteDailies: activity.DirectiveCompleted,
}

// Tracker — задание пользователя в сообществе.
type Tracker struct {
	ID          string
	Kind        Kind
	UserID      int64
	CommunityID int64
	TaskType    TaskType
	Description string
	Target      int64
	Progress    int64 // для GainScore может уменьшаться
	Reward      int64
	Keywords    []string // только для UseKeyword, в нижнем регистре
	Generated   bool     // false — взято из запасных шаблонов
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Completed   bool
	CompletedAt time.Time
}

// Live сообщает, не истекло ли задание к моменту now.
func (t *Tracker) Live(now time.Time) bool {
	return t.ExpiresAt.After(now)
}

// Open сообщает, можно ли ещё выполнить задание.
func (t *Tracker) Open(now time.Time) bool {
	return !t.Completed && t.Live(now)
}

// Counters — сколько заданий пользователь выполнил в сообществе.
type Counters struct {
	Daily  int
	Weekly int
}
