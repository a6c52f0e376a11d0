package generator

import (
	"fmt"
	"strings"
)

// Context — сведения о пользователе для персонализации заданий и признаний.
type Context struct {
	DisplayName         string
	Score               int64
	RecentActivity      string
	CompletedDirectives int
	CompletedGoals      int
}

const systemPrompt = `Ты — ведущий репутационной игры в Telegram-чате. ` +
	`Отвечай строго одним JSON-объектом без пояснений. Пиши по-русски.`

func (c Context) describe() string {
	activity := c.RecentActivity
	if activity == "" {
		activity = "нет данных"
	}
	return fmt.Sprintf(
		"Участник: %s\nТекущий счёт: %d\nНедавняя активность: %s\nВыполнено дневных заданий: %d\nВыполнено недельных целей: %d",
		c.DisplayName, c.Score, activity, c.CompletedDirectives, c.CompletedGoals,
	)
}

func taskPrompt(kind string, rules TaskRules, c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Придумай %s для участника.\n%s\n\n", kind, c.describe())
	fmt.Fprintf(&b, "Допустимые task_type: %s.\n", strings.Join(rules.AllowedTypes, ", "))
	if rules.KeywordType != "" {
		fmt.Fprintf(&b, "Для %s добавь массив keywords из 2-4 слов.\n", rules.KeywordType)
	}
	fmt.Fprintf(&b, "reward от %d до %d, target не больше %d.\n", rules.MinReward, rules.MaxReward, rules.MaxTarget)
	b.WriteString(`Формат: {"description": "...", "task_type": "...", "target": 10, "reward": 30, "keywords": []}`)
	return b.String()
}

const campaignPrompt = `Придумай короткий ивент для чата на полчаса.
effect.kind — один из: score_modifier (multiplier от 0.5 до 3), behavior_rule (block_negative: true), special_task (prompt — вопрос, answer — короткий ответ одним-двумя словами, reward — от 10 до 50).
Формат: {"slug": "latin_slug", "title": "...", "description": "...", "effect": {"kind": "...", "multiplier": 2}}`

const quizPrompt = `Придумай вопрос для викторины на скорость. Ответ — одно-два слова, однозначный.
Формат: {"question": "...", "answer": "...", "reward": 25}`

func confessionPrompt(c Context) string {
	return "Напиши от лица участника короткое шуточное признание (1-2 предложения), безобидное.\n" +
		c.describe() + "\n" + `Формат: {"text": "..."}`
}
