package thanks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/common"
	"serotonyl.ru/reputation-bot/internal/features/activity"
	"serotonyl.ru/reputation-bot/internal/features/effects"
	"serotonyl.ru/reputation-bot/internal/features/score"
	"serotonyl.ru/reputation-bot/internal/features/score/scoretest"
)

func TestIsThankYou(t *testing.T) {
	cases := map[string]bool{
		"спасибо":          true,
		"Спасибо!!!":       true,
		"спасибо большое)": true,
		"СПС":              true,
		"thanks":           true,
		"Thank you!":       true,
		"благодарю 🙏":      true,
		"не спасибо":       false,
		"":                 false,
		"спасибо, но я всё равно не согласен с тобой": false,
		"привет": false,
	}
	for text, want := range cases {
		if got := IsThankYou(text); got != want {
			t.Errorf("IsThankYou(%q) = %v, want %v", text, got, want)
		}
	}
}

type recorder struct {
	mu  sync.Mutex
	got []activity.Notification
}

func (r *recorder) Dispatch(_ context.Context, n activity.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func newService() (*Service, *recorder, *clock.FakeClock, *score.Ledger) {
	clk := clock.Fake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	ledger := score.NewLedger(scoretest.NewMemStore(), clk)
	rec := &recorder{}
	return NewService(score.NewPipeline(ledger, nil), effects.NewRegistry(clk), rec, 5, time.Hour), rec, clk, ledger
}

func TestGiveRewardsAndEmits(t *testing.T) {
	s, rec, clk, ledger := newService()
	ctx := context.Background()

	change, err := s.Give(ctx, Thanks{FromUserID: 1, ToUserID: 2, CommunityID: -10, Text: "спасибо", MessageID: 44})
	if err != nil {
		t.Fatal(err)
	}
	if change.NewScore != 5 || change.UserID != 2 {
		t.Fatalf("change = %+v", change)
	}
	if len(rec.got) != 1 || rec.got[0].Type != activity.HelpedOtherUser || rec.got[0].UserID != 2 {
		t.Fatalf("activity = %+v", rec.got)
	}

	if _, err := s.Give(ctx, Thanks{FromUserID: 1, ToUserID: 2, CommunityID: -10}); !errors.Is(err, common.ErrOnCooldown) {
		t.Fatalf("err = %v, want cooldown", err)
	}
	// другой адресат не на кулдауне
	if _, err := s.Give(ctx, Thanks{FromUserID: 1, ToUserID: 3, CommunityID: -10}); err != nil {
		t.Fatal(err)
	}

	clk.Advance(time.Hour)
	if _, err := s.Give(ctx, Thanks{FromUserID: 1, ToUserID: 2, CommunityID: -10}); err != nil {
		t.Fatalf("after cooldown: %v", err)
	}
	if got, _ := ledger.GetScore(ctx, 2, -10); got != 10 {
		t.Fatalf("score = %d, want 10", got)
	}
}

func TestSelfThanksRefused(t *testing.T) {
	s, rec, _, _ := newService()
	if _, err := s.Give(context.Background(), Thanks{FromUserID: 1, ToUserID: 1, CommunityID: -10}); !errors.Is(err, common.ErrSelfThanks) {
		t.Fatalf("err = %v", err)
	}
	if len(rec.got) != 0 {
		t.Fatal("self thanks emitted activity")
	}
}

func TestConcurrentThanksRewardOnce(t *testing.T) {
	s, rec, _, ledger := newService()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Give(ctx, Thanks{FromUserID: 1, ToUserID: 2, CommunityID: -10})
		}()
	}
	wg.Wait()

	if got, _ := ledger.GetScore(ctx, 2, -10); got != 5 {
		t.Fatalf("score = %d, want 5", got)
	}
	if len(rec.got) != 1 {
		t.Fatalf("activity = %d, want 1", len(rec.got))
	}
}
