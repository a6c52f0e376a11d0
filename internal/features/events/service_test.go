package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/features/activity"
	"serotonyl.ru/reputation-bot/internal/features/channels"
	"serotonyl.ru/reputation-bot/internal/features/members"
	"serotonyl.ru/reputation-bot/internal/features/score"
	"serotonyl.ru/reputation-bot/internal/features/score/scoretest"
	"serotonyl.ru/reputation-bot/internal/generator"
)

const community = -1001

type recorder struct {
	mu    sync.Mutex
	texts []string
	chans [][]int64
}

func (r *recorder) Announce(_ context.Context, _ int64, channelIDs []int64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	r.chans = append(r.chans, channelIDs)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

type fakeChannels map[channels.Kind][]int64

func (f fakeChannels) ChannelsOfKind(_ int64, k channels.Kind) []int64 { return f[k] }

type fakeGen struct {
	campaign *generator.Campaign
	quiz     *generator.Quiz
	err      error
	calls    int
}

func (g *fakeGen) Campaign(context.Context) (*generator.Campaign, error) {
	g.calls++
	return g.campaign, g.err
}

func (g *fakeGen) Quiz(context.Context) (*generator.Quiz, error) {
	g.calls++
	return g.quiz, g.err
}

type fixture struct {
	o      *Orchestrator
	clk    *clock.FakeClock
	ledger *score.Ledger
	ann    *recorder
	roster *members.Roster
}

func newFixture(t *testing.T, gen Generator, chans fakeChannels) *fixture {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	ledger := score.NewLedger(scoretest.NewMemStore(), clk)
	pipe := score.NewPipeline(ledger, nil)
	roster := members.NewRoster(clk)
	ann := &recorder{}
	if chans == nil {
		chans = fakeChannels{}
	}
	o := NewOrchestrator(Deps{
		Clock:     clk,
		Generator: gen,
		Rewarder:  pipe,
		Announcer: ann,
		Roster:    roster,
		Channels:  chans,
	}, Options{
		Duration:       30 * time.Minute,
		QuotaThreshold: 50,
		Intn:           func(int) int { return 0 },
	})
	pipe.SetTransformer(o)
	return &fixture{o: o, clk: clk, ledger: ledger, ann: ann, roster: roster}
}

func (f *fixture) score(t *testing.T, userID int64) int64 {
	t.Helper()
	s, err := f.ledger.GetScore(context.Background(), userID, community)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (f *fixture) start(t *testing.T, typ string) Campaign {
	t.Helper()
	c, started, err := f.o.StartCampaign(context.Background(), community, typ)
	if err != nil || !started {
		t.Fatalf("StartCampaign(%s) = %v, %v", typ, started, err)
	}
	return c
}

func message(userID, messageID int64, text string) activity.Notification {
	return activity.Notification{
		UserID:      userID,
		CommunityID: community,
		Type:        activity.MessageSent,
		Amount:      1,
		Meta:        activity.Meta{Text: text, MessageID: messageID},
	}
}

func TestIdentityWithoutCampaign(t *testing.T) {
	f := newFixture(t, nil, nil)
	for _, d := range []int64{-100, -1, 0, 1, 7, 1 << 40} {
		if got := f.o.ApplyEventEffects(community, d); got != d {
			t.Errorf("ApplyEventEffects(%d) = %d", d, got)
		}
	}
}

func TestScoreModifierRounds(t *testing.T) {
	cases := []struct {
		m    float64
		d    int64
		want int64
	}{
		{2, 7, 14},
		{2, -3, -6},
		{1.5, 3, 5},
		{1.5, 1, 2},
		{1.5, -3, -5},
		{1.5, 0, 0},
		{0.5, 5, 3},
	}
	for _, tc := range cases {
		if got := transform(Effect{Kind: ScoreModifier, Multiplier: tc.m}, tc.d); got != tc.want {
			t.Errorf("round(%d*%v) = %d, want %d", tc.d, tc.m, got, tc.want)
		}
	}

	f := newFixture(t, nil, nil)
	f.start(t, TypeDoublePoints)
	if got := f.o.ApplyEventEffects(community, 6); got != 12 {
		t.Fatalf("double points: %d", got)
	}
	if got := f.o.ApplyEventEffects(community+1, 6); got != 6 {
		t.Fatalf("other community affected: %d", got)
	}
}

func TestHarmonyBlocksNegative(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.start(t, TypeHarmony)

	for d, want := range map[int64]int64{-10: 0, -1: 0, 0: 0, 5: 5} {
		if got := f.o.ApplyEventEffects(community, d); got != want {
			t.Errorf("harmony(%d) = %d, want %d", d, got, want)
		}
	}

	f.clk.Advance(30 * time.Minute)
	if got := f.o.ApplyEventEffects(community, -10); got != -10 {
		t.Fatalf("after expiry = %d, want identity", got)
	}
	texts := f.ann.all()
	if len(texts) != 2 || !strings.Contains(texts[1], "завершён") {
		t.Fatalf("announcements = %q", texts)
	}
}

func TestStartIsNoOpWhenActive(t *testing.T) {
	f := newFixture(t, nil, nil)
	first := f.start(t, TypeDoublePoints)

	f.clk.Advance(10 * time.Minute)
	got, started, err := f.o.StartCampaign(context.Background(), community, TypeGoldenHour)
	if err != nil || started {
		t.Fatalf("second start = %v, %v", started, err)
	}
	if got.ID != first.ID || !got.EndTime.Equal(first.EndTime) {
		t.Fatalf("existing campaign changed: %+v", got)
	}
	if _, started := f.o.TriggerRandom(context.Background(), community); started {
		t.Fatal("TriggerRandom started over an active campaign")
	}
	if n := len(f.ann.all()); n != 1 {
		t.Fatalf("announcements = %d, want 1", n)
	}
	if _, _, err := f.o.StartCampaign(context.Background(), community+1, "chaos"); err == nil {
		t.Fatal("unknown type accepted")
	}
}

func TestRaceFirstResponderWins(t *testing.T) {
	gen := &fakeGen{quiz: &generator.Quiz{Question: "Столица Франции?", Answer: "Париж", Reward: 30}}
	f := newFixture(t, gen, fakeChannels{channels.KindAnnounce: {5, 6}})
	f.roster.Join(community, members.Profile{UserID: 2, Username: "winner"})
	f.start(t, TypeTriviaRush)

	ctx := context.Background()
	f.o.HandleActivity(ctx, message(1, 1, "мне кажется, Лондон"))
	f.o.HandleActivity(ctx, message(2, 2, "Париж!"))
	f.o.HandleActivity(ctx, message(3, 3, "париж"))

	if got := f.score(t, 2); got != 30 {
		t.Fatalf("winner score = %d, want 30", got)
	}
	if got := f.score(t, 3); got != 0 {
		t.Fatalf("second responder score = %d, want 0", got)
	}
	if _, ok := f.o.ActiveCampaign(community); ok {
		t.Fatal("campaign still active after win")
	}
	if f.clk.Pending() != 0 {
		t.Fatal("timer not cancelled")
	}

	f.clk.Advance(time.Hour)
	texts := f.ann.all()
	if len(texts) != 2 {
		t.Fatalf("announcements = %q, want start and win", texts)
	}
	if !strings.Contains(texts[1], "@winner") {
		t.Fatalf("win announcement = %q", texts[1])
	}
	if ch := f.ann.chans[1]; len(ch) != 2 || ch[0] != 5 {
		t.Fatalf("announce channels = %v", ch)
	}
}

func TestConcurrentRaceHasOneWinner(t *testing.T) {
	gen := &fakeGen{quiz: &generator.Quiz{Question: "2+2?", Answer: "4", Reward: 30}}
	f := newFixture(t, gen, fakeChannels{channels.KindAnnounce: {5}})
	f.start(t, TypeTriviaRush)

	const players = 50
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := int64(1); i <= players; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			f.o.HandleActivity(ctx, message(userID, userID, "4"))
		}(i)
	}
	wg.Wait()

	var winners int
	for i := int64(1); i <= players; i++ {
		switch f.score(t, i) {
		case 0:
		case 30:
			winners++
		default:
			t.Fatalf("user %d score = %d", i, f.score(t, i))
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want 1", winners)
	}
	if texts := f.ann.all(); len(texts) != 2 {
		t.Fatalf("announcements = %q, want start and win", texts)
	}
	if _, ok := f.o.ActiveCampaign(community); ok {
		t.Fatal("campaign still active after win")
	}
}

func TestRaceTimeoutFailsWithoutReward(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.start(t, TypeTriviaRush)

	f.clk.Advance(30 * time.Minute)
	f.o.HandleActivity(context.Background(), message(1, 1, "366"))

	if got := f.score(t, 1); got != 0 {
		t.Fatalf("late answer rewarded: %d", got)
	}
	texts := f.ann.all()
	if len(texts) != 2 || !strings.Contains(texts[1], "366") {
		t.Fatalf("announcements = %q", texts)
	}
	if ch := f.ann.chans[0]; len(ch) != 1 || ch[0] != 0 {
		t.Fatalf("default announce channel = %v", ch)
	}
}

func TestQuotaReachedRewardsPresentMembersOnce(t *testing.T) {
	f := newFixture(t, nil, nil)
	for _, id := range []int64{1, 2, 3, 4} {
		f.roster.Join(community, members.Profile{UserID: id})
	}
	f.roster.Join(community, members.Profile{UserID: 99, IsBot: true})
	f.roster.Leave(community, 4)
	f.start(t, TypeTeamQuota)

	ctx := context.Background()
	for i := int64(1); i <= 50; i++ {
		f.o.HandleActivity(ctx, message(1, i, "привет"))
	}
	f.o.HandleActivity(ctx, message(2, 51, "ещё"))

	for id, want := range map[int64]int64{1: 15, 2: 15, 3: 15, 4: 0, 99: 0} {
		if got := f.score(t, id); got != want {
			t.Errorf("user %d score = %d, want %d", id, got, want)
		}
	}
	if n := len(f.ann.all()); n != 2 {
		t.Fatalf("announcements = %d, want 2", n)
	}
}

func TestQuotaOneShortRewardsNobody(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.roster.Join(community, members.Profile{UserID: 1})
	f.start(t, TypeTeamQuota)

	ctx := context.Background()
	for i := int64(1); i <= 49; i++ {
		f.o.HandleActivity(ctx, message(1, i, "привет"))
	}
	for i := int64(1); i <= 10; i++ {
		f.o.HandleActivity(ctx, message(1, i, "дубль"))
	}
	status, ok := f.o.Status(community)
	if !ok || status.Tally != 49 {
		t.Fatalf("status = %+v, %v", status, ok)
	}

	f.clk.Advance(30 * time.Minute)
	if got := f.score(t, 1); got != 0 {
		t.Fatalf("score = %d, want 0", got)
	}
	texts := f.ann.all()
	if len(texts) != 2 || !strings.Contains(texts[1], "49 из 50") {
		t.Fatalf("announcements = %q", texts)
	}
}

func TestQuotaCountsOnlyQuotaChannels(t *testing.T) {
	f := newFixture(t, nil, fakeChannels{channels.KindQuota: {7}})
	f.start(t, TypeTeamQuota)

	n := message(1, 1, "x")
	n.Meta.ChannelID = 8
	f.o.HandleActivity(context.Background(), n)
	n.Meta.ChannelID = 7
	n.Meta.MessageID = 2
	f.o.HandleActivity(context.Background(), n)

	if status, _ := f.o.Status(community); status.Tally != 1 {
		t.Fatalf("tally = %d, want 1", status.Tally)
	}
}

func TestEndCampaignCancelsWithoutReward(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.roster.Join(community, members.Profile{UserID: 1})
	f.start(t, TypeTeamQuota)

	ctx := context.Background()
	for i := int64(1); i <= 10; i++ {
		f.o.HandleActivity(ctx, message(1, i, "привет"))
	}
	if !f.o.EndCampaign(ctx, community) {
		t.Fatal("EndCampaign returned false")
	}
	if f.o.EndCampaign(ctx, community) {
		t.Fatal("second EndCampaign returned true")
	}
	if f.clk.Pending() != 0 {
		t.Fatal("timer not cancelled")
	}
	for i := int64(11); i <= 60; i++ {
		f.o.HandleActivity(ctx, message(1, i, "привет"))
	}
	f.clk.Advance(time.Hour)

	if got := f.score(t, 1); got != 0 {
		t.Fatalf("cancelled campaign rewarded: %d", got)
	}
	texts := f.ann.all()
	if len(texts) != 2 || !strings.Contains(texts[1], "остановлен") {
		t.Fatalf("announcements = %q", texts)
	}

	// после отмены можно запустить новый
	f.start(t, TypeGoldenHour)
}

func TestTriggerRandomFallsBackOnGeneratorFailure(t *testing.T) {
	gen := &fakeGen{err: errors.New("boom")}
	f := newFixture(t, gen, nil)
	f.o.opts.DynamicEnabled = true

	c, started := f.o.TriggerRandom(context.Background(), community)
	if !started || c.Type != PredefinedTypes[0] {
		t.Fatalf("fallback campaign = %+v, %v", c, started)
	}
	if c.Effect.Kind != ScoreModifier || c.Effect.Multiplier != 2 {
		t.Fatalf("fallback effect = %+v", c.Effect)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d", gen.calls)
	}
}

func TestTriggerRandomUsesGeneratedCampaign(t *testing.T) {
	gen := &fakeGen{campaign: &generator.Campaign{
		Slug: "riddle", Title: "Загадка", Description: "Отгадайте",
		EffectKind: generator.EffectSpecialTask, Prompt: "Зимой и летом одним цветом?", Answer: "ёлка", Reward: 20,
	}}
	f := newFixture(t, gen, nil)
	f.o.opts.DynamicEnabled = true

	c, started := f.o.TriggerRandom(context.Background(), community)
	if !started || c.Type != "dynamic:riddle" {
		t.Fatalf("campaign = %+v, %v", c, started)
	}
	f.o.HandleActivity(context.Background(), message(4, 1, "Это елка"))
	if got := f.score(t, 4); got != 20 {
		t.Fatalf("score = %d, want 20", got)
	}
}

func TestFallbackQuizWhenGeneratorFails(t *testing.T) {
	f := newFixture(t, &fakeGen{err: errors.New("timeout")}, nil)
	c := f.start(t, TypeTriviaRush)
	task := c.Effect.Task
	if task == nil || task.Race == nil || task.Prompt != fallbackQuizzes[0].question || task.Reward != quizReward {
		t.Fatalf("fallback quiz = %+v", task)
	}
}

func TestAnswerMatches(t *testing.T) {
	cases := []struct {
		text, answer string
		want         bool
	}{
		{"Ёлка!", "елка", true},
		{"это Лена, точно", "Лена", true},
		{"44", "4", false},
		{"Канберра", "", false},
		{"кан берра", "Канберра", false},
	}
	for _, tc := range cases {
		if got := answerMatches(tc.text, tc.answer); got != tc.want {
			t.Errorf("answerMatches(%q, %q) = %v", tc.text, tc.answer, got)
		}
	}
}
