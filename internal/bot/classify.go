// Package bot — classify.go превращает сообщения и реакции в уведомления
// об активности. Здесь нет ничего от Telegram: на вход уже разобранные поля.
package bot

import (
	"strings"
	"unicode"

	"serotonyl.ru/reputation-bot/internal/features/activity"
)

// Incoming — сообщение в отслеживаемом сообществе.
type Incoming struct {
	UserID      int64
	CommunityID int64
	ChannelID   int64
	MessageID   int64
	Text        string
	Mentions    int // упоминания других участников
}

// CountWords подсчитывает слова, разделённые пробельными символами.
//
//	CountWords("привет как дела")     → 3
//	CountWords("  пробелы  лишние  ") → 2
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// QualifiesAsMessage проверяет, засчитывается ли сообщение в задания:
// минимум 3 слова и не команда (не начинается с !, . или /).
func QualifiesAsMessage(text string) bool {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "!") || strings.HasPrefix(text, ".") || strings.HasPrefix(text, "/") {
		return false
	}
	return CountWords(text) >= 3
}

// MatchKeywords возвращает слова из keywords, встреченные в тексте
// целиком (без учёта регистра). Каждое слово учитывается один раз.
func MatchKeywords(text string, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	present := make(map[string]bool, len(words))
	for _, w := range words {
		present[w] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] || !present[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// Classify раскладывает сообщение на уведомления. MessageSent отправляется
// всегда: короткое сообщение идёт с нулевым Amount и видно только мини-игре.
func Classify(in Incoming, keywords []string) []activity.Notification {
	meta := activity.Meta{Text: in.Text, ChannelID: in.ChannelID, MessageID: in.MessageID}

	sent := activity.Notification{
		UserID:      in.UserID,
		CommunityID: in.CommunityID,
		Type:        activity.MessageSent,
		Meta:        meta,
	}
	if QualifiesAsMessage(in.Text) {
		sent.Amount = 1
	}
	out := []activity.Notification{sent}

	for _, kw := range MatchKeywords(in.Text, keywords) {
		m := meta
		m.Keyword = kw
		out = append(out, activity.Notification{
			UserID:      in.UserID,
			CommunityID: in.CommunityID,
			Type:        activity.KeywordUsed,
			Amount:      1,
			Meta:        m,
		})
	}

	if in.Mentions > 0 {
		out = append(out, activity.Notification{
			UserID:      in.UserID,
			CommunityID: in.CommunityID,
			Type:        activity.UserMentioned,
			Amount:      int64(in.Mentions),
			Meta:        meta,
		})
	}
	return out
}

// ReactionsAdded — сколько реакций пользователь добавил одним обновлением.
// Снятие реакций не уменьшает прогресс.
func ReactionsAdded(oldCount, newCount int) int64 {
	if newCount <= oldCount {
		return 0
	}
	return int64(newCount - oldCount)
}
