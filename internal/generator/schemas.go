package generator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"serotonyl.ru/reputation-bot/internal/common"
)

// Task — сгенерированное задание (дневная директива или недельная цель).
type Task struct {
	Description string
	TaskType    string
	Target      int64
	Reward      int64
	Keywords    []string
}

// TaskRules — ограничения, по которым проверяется сгенерированное задание.
type TaskRules struct {
	AllowedTypes []string
	KeywordType  string // тип, которому нужен список keywords
	MaxTarget    int64
	MinReward    int64
	MaxReward    int64
}

// EffectKind — вид эффекта ивента в ответе генератора.
const (
	EffectScoreModifier = "score_modifier"
	EffectBehaviorRule  = "behavior_rule"
	EffectSpecialTask   = "special_task"
)

// Campaign — сгенерированный ивент.
type Campaign struct {
	Slug          string
	Title         string
	Description   string
	EffectKind    string
	Multiplier    float64
	BlockNegative bool
	Prompt        string
	Answer        string
	Reward        int64
}

// Confession — сгенерированное признание.
type Confession struct {
	Text string
}

// Quiz — вопрос для мини-игры на скорость.
type Quiz struct {
	Question string
	Answer   string
	Reward   int64
}

// Пределы награды мини-игр. Всё, что вне них, считается галлюцинацией.
const (
	MinGameReward int64 = 10
	MaxGameReward int64 = 100
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,31}$`)

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), common.ErrMalformedResponse)
}

func validObject(raw string) error {
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return malformed("ответ не является JSON-объектом")
	}
	return nil
}

// requiredString читает непустую строку.
func requiredString(raw, path string) (string, error) {
	v := gjson.Get(raw, path)
	if v.Type != gjson.String || strings.TrimSpace(v.String()) == "" {
		return "", malformed("поле %q отсутствует или пустое", path)
	}
	return strings.TrimSpace(v.String()), nil
}

// requiredInt читает положительное целое.
func requiredInt(raw, path string) (int64, error) {
	v := gjson.Get(raw, path)
	if v.Type != gjson.Number || v.Int() <= 0 || float64(v.Int()) != v.Float() {
		return 0, malformed("поле %q должно быть положительным целым", path)
	}
	return v.Int(), nil
}

// gameReward читает награду мини-игры в пределах [MinGameReward, MaxGameReward].
func gameReward(raw, path string) (int64, error) {
	r, err := requiredInt(raw, path)
	if err != nil {
		return 0, err
	}
	if r < MinGameReward || r > MaxGameReward {
		return 0, malformed("%s %d вне [%d, %d]", path, r, MinGameReward, MaxGameReward)
	}
	return r, nil
}

// ParseTask разбирает задание и проверяет его по rules.
func ParseTask(raw string, rules TaskRules) (*Task, error) {
	if err := validObject(raw); err != nil {
		return nil, err
	}
	var t Task
	var err error
	if t.Description, err = requiredString(raw, "description"); err != nil {
		return nil, err
	}
	if t.TaskType, err = requiredString(raw, "task_type"); err != nil {
		return nil, err
	}
	allowed := false
	for _, a := range rules.AllowedTypes {
		if a == t.TaskType {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, malformed("недопустимый task_type %q", t.TaskType)
	}
	if t.Target, err = requiredInt(raw, "target"); err != nil {
		return nil, err
	}
	if rules.MaxTarget > 0 && t.Target > rules.MaxTarget {
		return nil, malformed("target %d больше %d", t.Target, rules.MaxTarget)
	}
	if t.Reward, err = requiredInt(raw, "reward"); err != nil {
		return nil, err
	}
	if t.Reward < rules.MinReward || t.Reward > rules.MaxReward {
		return nil, malformed("reward %d вне [%d, %d]", t.Reward, rules.MinReward, rules.MaxReward)
	}

	for _, kw := range gjson.Get(raw, "keywords").Array() {
		if s := strings.ToLower(strings.TrimSpace(kw.String())); s != "" {
			t.Keywords = append(t.Keywords, s)
		}
	}
	if t.TaskType == rules.KeywordType && len(t.Keywords) == 0 {
		return nil, malformed("для %q нужен непустой keywords", t.TaskType)
	}
	return &t, nil
}

// ParseCampaign разбирает описание ивента.
func ParseCampaign(raw string) (*Campaign, error) {
	if err := validObject(raw); err != nil {
		return nil, err
	}
	var c Campaign
	var err error
	if c.Slug, err = requiredString(raw, "slug"); err != nil {
		return nil, err
	}
	c.Slug = strings.ToLower(c.Slug)
	if !slugPattern.MatchString(c.Slug) {
		return nil, malformed("некорректный slug %q", c.Slug)
	}
	if c.Title, err = requiredString(raw, "title"); err != nil {
		return nil, err
	}
	if c.Description, err = requiredString(raw, "description"); err != nil {
		return nil, err
	}
	if c.EffectKind, err = requiredString(raw, "effect.kind"); err != nil {
		return nil, err
	}

	switch c.EffectKind {
	case EffectScoreModifier:
		m := gjson.Get(raw, "effect.multiplier")
		if m.Type != gjson.Number || m.Float() <= 0 || m.Float() > 5 {
			return nil, malformed("multiplier должен быть в (0, 5]")
		}
		c.Multiplier = m.Float()
	case EffectBehaviorRule:
		if !gjson.Get(raw, "effect.block_negative").Bool() {
			return nil, malformed("behavior_rule поддерживает только block_negative=true")
		}
		c.BlockNegative = true
	case EffectSpecialTask:
		if c.Prompt, err = requiredString(raw, "effect.prompt"); err != nil {
			return nil, err
		}
		if c.Answer, err = requiredString(raw, "effect.answer"); err != nil {
			return nil, err
		}
		if c.Reward, err = gameReward(raw, "effect.reward"); err != nil {
			return nil, err
		}
	default:
		return nil, malformed("неизвестный effect.kind %q", c.EffectKind)
	}
	return &c, nil
}

// ParseConfession разбирает признание.
func ParseConfession(raw string) (*Confession, error) {
	if err := validObject(raw); err != nil {
		return nil, err
	}
	text, err := requiredString(raw, "text")
	if err != nil {
		return nil, err
	}
	return &Confession{Text: text}, nil
}

// ParseQuiz разбирает вопрос викторины.
func ParseQuiz(raw string) (*Quiz, error) {
	if err := validObject(raw); err != nil {
		return nil, err
	}
	var q Quiz
	var err error
	if q.Question, err = requiredString(raw, "question"); err != nil {
		return nil, err
	}
	if q.Answer, err = requiredString(raw, "answer"); err != nil {
		return nil, err
	}
	if q.Reward, err = gameReward(raw, "reward"); err != nil {
		return nil, err
	}
	return &q, nil
}
