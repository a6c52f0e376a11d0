package events

import (
	"context"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-bot/internal/common"
	"serotonyl.ru/reputation-bot/internal/features/activity"
	"serotonyl.ru/reputation-bot/internal/features/channels"
	"serotonyl.ru/reputation-bot/internal/generator"
)

// PredefinedTypes — типы, из которых выбирается запасной ивент.
var PredefinedTypes = []string{
	TypeDoublePoints,
	TypeGoldenHour,
	TypeHarmony,
	TypeTriviaRush,
	TypeTeamQuota,
}

const (
	quotaReward = 15
	quizReward  = 25
)

type quiz struct {
	question string
	answer   string
}

var fallbackQuizzes = []quiz{
	{"Сколько дней в високосном году?", "366"},
	{"Как называется самая длинная река в России?", "Лена"},
	{"Какой химический элемент обозначается символом Fe?", "железо"},
	{"Столица Австралии?", "Канберра"},
	{"Сколько ног у паука?", "8"},
	{"Кто написал «Евгения Онегина»?", "Пушкин"},
}

// build собирает ивент предопределённого типа. Викторина берёт вопрос
// у генератора, при ошибке — из запасного набора.
func (o *Orchestrator) build(ctx context.Context, communityID int64, typ string) (Campaign, error) {
	c := Campaign{CommunityID: communityID, Type: typ}
	switch typ {
	case TypeDoublePoints:
		c.Title = "Двойные очки"
		c.Description = "Все изменения репутации удваиваются."
		c.Effect = Effect{Kind: ScoreModifier, Multiplier: 2}
	case TypeGoldenHour:
		c.Title = "Золотой час"
		c.Description = "Все изменения репутации умножаются на 1,5."
		c.Effect = Effect{Kind: ScoreModifier, Multiplier: 1.5}
	case TypeHarmony:
		c.Title = "Гармония"
		c.Description = "Репутацию нельзя потерять: минусы не засчитываются."
		c.Effect = Effect{Kind: BehaviorRule, BlockNegative: true}
	case TypeTriviaRush:
		q := o.quiz(ctx)
		c.Title = "Викторина"
		c.Description = "Первый правильный ответ в чате забирает награду."
		c.Effect = Effect{Kind: SpecialTask, Task: &Task{
			Prompt: q.question,
			Reward: q.reward,
			Race:   &Race{Answer: q.answer},
		}}
	case TypeTeamQuota:
		c.Title = "Командная квота"
		c.Description = "Наберите вместе нужное число сообщений, и награду получат все."
		c.Effect = Effect{Kind: SpecialTask, Task: &Task{
			Prompt: "Пишите в чат!",
			Reward: quotaReward,
			Quota: &Quota{
				Activity:  activity.MessageSent,
				Threshold: o.opts.QuotaThreshold,
				Channels:  o.channels.ChannelsOfKind(communityID, channels.KindQuota),
			},
		}}
	default:
		return Campaign{}, common.ErrUnknownCampaignType
	}
	return c, nil
}

type quizContent struct {
	question string
	answer   string
	reward   int64
}

func (o *Orchestrator) quiz(ctx context.Context) quizContent {
	if o.gen != nil {
		q, err := o.gen.Quiz(ctx)
		if err == nil {
			return quizContent{q.Question, q.Answer, q.Reward}
		}
		log.WithError(err).Warn("Не удалось сгенерировать вопрос, берём запасной")
	}
	fq := fallbackQuizzes[o.opts.Intn(len(fallbackQuizzes))]
	return quizContent{fq.question, fq.answer, quizReward}
}

// fromGenerated превращает сгенерированный ивент в Campaign.
func fromGenerated(communityID int64, g *generator.Campaign) (Campaign, error) {
	c := Campaign{
		CommunityID: communityID,
		Type:        DynamicPrefix + g.Slug,
		Title:       g.Title,
		Description: g.Description,
	}
	switch g.EffectKind {
	case generator.EffectScoreModifier:
		c.Effect = Effect{Kind: ScoreModifier, Multiplier: g.Multiplier}
	case generator.EffectBehaviorRule:
		c.Effect = Effect{Kind: BehaviorRule, BlockNegative: g.BlockNegative}
	case generator.EffectSpecialTask:
		c.Effect = Effect{Kind: SpecialTask, Task: &Task{
			Prompt: g.Prompt,
			Reward: g.Reward,
			Race:   &Race{Answer: g.Answer},
		}}
	default:
		return Campaign{}, common.ErrInvalidCampaign
	}
	return c, nil
}

// normalize приводит текст к виду для сравнения ответов: нижний регистр,
// ё→е, знаки препинания заменены пробелами, пробелы схлопнуты.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ё", "е")
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// answerMatches сообщает, содержит ли текст ответ целыми словами.
func answerMatches(text, answer string) bool {
	a := normalize(answer)
	if a == "" {
		return false
	}
	return strings.Contains(" "+normalize(text)+" ", " "+a+" ")
}
