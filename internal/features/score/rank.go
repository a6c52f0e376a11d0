// Package score — rank.go классифицирует счёт по фиксированной таблице рангов.
package score

// Severity — насколько тревожен ранг для модераторов.
type Severity int

const (
	SeverityPositive Severity = iota
	SeverityNeutral
	SeverityWarning
	SeverityCritical
)

// Rank — ранг участника.
type Rank struct {
	Label       string
	Description string
	Severity    Severity
}

// rankTier — порог ранга. match проверяет, попадает ли счёт в ранг.
type rankTier struct {
	match func(score int64) bool
	rank  Rank
}

// rankTiers проверяются сверху вниз, первый подходящий выигрывает.
var rankTiers = []rankTier{
	{func(s int64) bool { return s >= 2000 }, Rank{"👑 Легенда", "Опора сообщества, пример для всех", SeverityPositive}},
	{func(s int64) bool { return s >= 1000 }, Rank{"🏛 Столп", "Уважаемый участник с большим вкладом", SeverityPositive}},
	{func(s int64) bool { return s >= 500 }, Rank{"🤝 Доверенный", "Стабильно хорошая репутация", SeverityPositive}},
	{func(s int64) bool { return s > 0 }, Rank{"🙂 Участник", "Репутация в плюсе", SeverityPositive}},
	{func(s int64) bool { return s == 0 }, Rank{"🌱 Новичок", "Репутация ещё не сложилась", SeverityNeutral}},
	{func(s int64) bool { return s >= -200 }, Rank{"🤨 Подозрительный", "Есть замечания", SeverityWarning}},
	{func(s int64) bool { return s >= -500 }, Rank{"⚠️ Нарушитель", "Регулярные нарушения", SeverityWarning}},
	{func(int64) bool { return true }, Rank{"⛔ Изгой", "Репутация на дне", SeverityCritical}},
}

// RankFor возвращает ранг для счёта. Чистая функция.
func RankFor(score int64) Rank {
	for _, tier := range rankTiers {
		if tier.match(score) {
			return tier.rank
		}
	}
	return rankTiers[len(rankTiers)-1].rank
}
