// Package common содержит общие утилиты, используемые во всём проекте:
// русская плюрализация, форматирование чисел и длительностей, часовой пояс.
package common

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// pluralForm выбирает форму слова по правилам русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 101)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 22)
//   - остальные → many (0, 5-20, 25, 100)
func pluralForm(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizePoints возвращает форму слова «очко» для n.
//
//	PluralizePoints(1)  → "очко"
//	PluralizePoints(3)  → "очка"
//	PluralizePoints(11) → "очков"
func PluralizePoints(n int64) string {
	return pluralForm(n, "очко", "очка", "очков")
}

// PluralizeMinutes возвращает форму слова «минута».
func PluralizeMinutes(n int64) string {
	return pluralForm(n, "минута", "минуты", "минут")
}

// FormatPoints форматирует счёт: FormatPoints(150) → "150 очков".
func FormatPoints(score int64) string {
	return fmt.Sprintf("%s %s", FormatNumber(score), PluralizePoints(score))
}

// FormatDelta создаёт строку вида "+10 очков" или "-5 очков".
func FormatDelta(delta int64) string {
	if delta >= 0 {
		return fmt.Sprintf("+%d %s", delta, PluralizePoints(delta))
	}
	return fmt.Sprintf("%d %s", delta, PluralizePoints(delta))
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}

// FormatDuration округляет длительность до минут для сообщений пользователю.
// Меньше минуты показывается как «меньше минуты».
func FormatDuration(d time.Duration) string {
	minutes := int64(d.Round(time.Minute) / time.Minute)
	if minutes <= 0 {
		return "меньше минуты"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d %s", minutes, PluralizeMinutes(minutes))
	}
	return fmt.Sprintf("%d ч %d мин", minutes/60, minutes%60)
}

// Truncate обрезает строку до max рун, добавляя «…».
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}

// LoadLocation загружает часовой пояс. Если зоны нет в системе — UTC+3.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// FormatDateTime форматирует время в "02.01.2006 15:04" в заданной зоне.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}
