package directives

import "serotonyl.ru/reputation-bot/internal/generator"

type rewardBounds struct {
	min, max int64
}

var bounds = map[Kind]rewardBounds{
	Daily:  {20, 50},
	Weekly: {100, 250},
}

var maxTarget = map[Kind]int64{
	Daily:  100,
	Weekly: 500,
}

type template struct {
	taskType    TaskType
	description string
	target      int64
	keywords    []string
}

// Запасные задания на случай, когда генератор недоступен.
var fallbackTemplates = map[Kind][]template{
	Daily: {
		{SendMessages, "Напиши 20 сообщений в чате", 20, nil},
		{AddReactions, "Поставь 10 реакций на сообщения других", 10, nil},
		{MentionUsers, "Упомяни 5 участников в разговоре", 5, nil},
		{HelpOthers, "Помоги двум участникам так, чтобы тебя поблагодарили", 2, nil},
		{UseKeyword, "Будь вежлив: скажи «спасибо» или «пожалуйста» 3 раза", 3, []string{"спасибо", "пожалуйста"}},
	},
	Weekly: {
		{SendMessages, "Напиши 150 сообщений за неделю", 150, nil},
		{GainScore, "Заработай 100 очков репутации за неделю", 100, nil},
		{HelpOthers, "Получи 10 благодарностей за помощь", 10, nil},
		{CompleteDailies, "Выполни 5 дневных директив", 5, nil},
	},
}

func (k Kind) rules() generator.TaskRules {
	types := dailyTypes
	if k == Weekly {
		types = weeklyTypes
	}
	allowed := make([]string, len(types))
	for i, t := range types {
		allowed[i] = string(t)
	}
	keywordType := ""
	if k == Daily {
		keywordType = string(UseKeyword)
	}
	return generator.TaskRules{
		AllowedTypes: allowed,
		KeywordType:  keywordType,
		MaxTarget:    maxTarget[k],
		MinReward:    bounds[k].min,
		MaxReward:    bounds[k].max,
	}
}

// Title — название класса задания в винительном падеже.
func (k Kind) Title() string {
	if k == Weekly {
		return "недельную цель"
	}
	return "дневное задание"
}
