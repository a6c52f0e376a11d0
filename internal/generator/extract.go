package generator

import (
	"fmt"
	"regexp"
	"strings"

	"serotonyl.ru/reputation-bot/internal/common"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ExtractJSONObject находит в ответе модели первый сбалансированный
// JSON-объект. Текст вокруг, блоки ```json и <think> игнорируются.
// Скобки внутри строк не учитываются.
func ExtractJSONObject(s string) (string, error) {
	s = thinkBlock.ReplaceAllString(s, "")

	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end, ok := matchObject(s, start); ok {
			return s[start : end+1], nil
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", fmt.Errorf("в ответе нет JSON-объекта: %w", common.ErrMalformedResponse)
}

// matchObject возвращает индекс закрывающей скобки объекта, начатого в start.
func matchObject(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
