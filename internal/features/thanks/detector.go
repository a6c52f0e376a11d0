// Package thanks — detector.go определяет, является ли сообщение благодарностью.
package thanks

import "strings"

var thankWords = map[string]bool{
	"спасибо":   true,
	"спасибки":  true,
	"спс":       true,
	"благодарю": true,
	"thanks":    true,
	"thx":       true,
	"ty":        true,
}

// IsThankYou проверяет, является ли текст благодарностью.
// Регистр не важен, пунктуация и смайлы в конце допускаются,
// допускается короткое продолжение: «спасибо большое», «thank you».
func IsThankYou(text string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	cleaned = strings.TrimRight(cleaned, "!.,;:)( ❤️🙏")
	words := strings.Fields(cleaned)
	if len(words) == 0 || len(words) > 3 {
		return false
	}
	if words[0] == "thank" && len(words) > 1 && words[1] == "you" {
		return true
	}
	return thankWords[strings.Trim(words[0], ",!.")]
}
