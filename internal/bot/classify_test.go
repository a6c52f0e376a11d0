package bot

import (
	"testing"

	"serotonyl.ru/reputation-bot/internal/features/activity"
)

func TestQualifiesAsMessage(t *testing.T) {
	cases := map[string]bool{
		"привет как дела":     true,
		"ок":                  false,
		"  пробелы  лишние  ": false,
		"/top все участники":  false,
		"!score и ещё слова":  false,
		"раз два три четыре":  true,
	}
	for text, want := range cases {
		if got := QualifiesAsMessage(text); got != want {
			t.Errorf("QualifiesAsMessage(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestMatchKeywords(t *testing.T) {
	got := MatchKeywords("Спасибо, спасибо! И пожалуйста.", []string{"спасибо", "пожалуйста", "привет"})
	if len(got) != 2 || got[0] != "спасибо" || got[1] != "пожалуйста" {
		t.Fatalf("got %v", got)
	}
	if got := MatchKeywords("спасибочки", []string{"спасибо"}); len(got) != 0 {
		t.Fatalf("partial word matched: %v", got)
	}
}

func TestClassify(t *testing.T) {
	in := Incoming{UserID: 1, CommunityID: -10, ChannelID: 3, MessageID: 77, Text: "спасибо @a и @b за помощь", Mentions: 2}
	got := Classify(in, []string{"спасибо"})

	if len(got) != 3 {
		t.Fatalf("got %d notifications: %+v", len(got), got)
	}
	if got[0].Type != activity.MessageSent || got[0].Amount != 1 || got[0].Meta.MessageID != 77 {
		t.Errorf("message = %+v", got[0])
	}
	if got[1].Type != activity.KeywordUsed || got[1].Meta.Keyword != "спасибо" {
		t.Errorf("keyword = %+v", got[1])
	}
	if got[2].Type != activity.UserMentioned || got[2].Amount != 2 {
		t.Errorf("mentions = %+v", got[2])
	}
}

func TestClassifyShortMessage(t *testing.T) {
	got := Classify(Incoming{UserID: 1, CommunityID: -10, Text: "366"}, nil)
	if len(got) != 1 || got[0].Amount != 0 || got[0].Meta.Text != "366" {
		t.Fatalf("got %+v", got)
	}
}

func TestReactionsAdded(t *testing.T) {
	if ReactionsAdded(0, 2) != 2 || ReactionsAdded(2, 1) != 0 || ReactionsAdded(1, 1) != 0 {
		t.Fatal("unexpected reaction delta")
	}
}

func TestParseCommand(t *testing.T) {
	p := NewCommandParser("RepBot")
	cases := []struct {
		text string
		cmd  string
		args int
		ok   bool
	}{
		{"/top", "top", 0, true},
		{"/top@repbot global", "top", 1, true},
		{"/top@other_bot", "", 0, false},
		{"!Score", "score", 0, true},
		{".daily reroll", "daily", 1, true},
		{"просто текст", "", 0, false},
		{"/", "", 0, false},
	}
	for _, c := range cases {
		cmd, args, ok := p.ParseCommand(c.text)
		if ok != c.ok || cmd != c.cmd || len(args) != c.args {
			t.Errorf("ParseCommand(%q) = %q, %v, %v", c.text, cmd, args, ok)
		}
	}
}
