package score_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/common"
	"serotonyl.ru/reputation-bot/internal/features/score"
	"serotonyl.ru/reputation-bot/internal/features/score/scoretest"
)

func newLedger() (*score.Ledger, *scoretest.MemStore, *clock.FakeClock) {
	store := scoretest.NewMemStore()
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return score.NewLedger(store, clk), store, clk
}

func TestGetScoreAbsentIsZero(t *testing.T) {
	ledger, _, _ := newLedger()
	got, err := ledger.GetScore(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("GetScore: %v", err)
	}
	if got != 0 {
		t.Fatalf("score = %d, want 0", got)
	}
}

func TestUpdateScoreCompositionAndReplay(t *testing.T) {
	ctx := context.Background()
	ledger, _, clk := newLedger()
	deltas := []int64{10, -3, 0, 25, -40, 7}

	var sum int64
	for _, d := range deltas {
		clk.Advance(time.Second)
		change, err := ledger.UpdateScore(ctx, score.Update{
			UserID: 1, CommunityID: 100, Delta: d, Reason: "test", KeepZero: true,
		})
		if err != nil {
			t.Fatalf("UpdateScore(%d): %v", d, err)
		}
		sum += d
		if change.NewScore != sum {
			t.Fatalf("NewScore = %d, want %d", change.NewScore, sum)
		}
	}

	history, err := ledger.GetHistory(ctx, 1, 100, 100)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != len(deltas) {
		t.Fatalf("history len = %d, want %d", len(history), len(deltas))
	}

	// Воспроизводим историю от старых к новым.
	var running int64
	for i := len(history) - 1; i >= 0; i-- {
		e := history[i]
		if e.PreviousScore != running {
			t.Fatalf("entry %d: previous = %d, want %d", i, e.PreviousScore, running)
		}
		if e.NewScore != e.PreviousScore+e.Delta {
			t.Fatalf("entry %d: new %d != prev %d + delta %d", i, e.NewScore, e.PreviousScore, e.Delta)
		}
		running = e.NewScore
	}
	final, _ := ledger.GetScore(ctx, 1, 100)
	if running != final || final != sum {
		t.Fatalf("replayed %d, stored %d, sum %d", running, final, sum)
	}
}

func TestUpdateScoreZeroDeltaSkippedUnlessKept(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newLedger()

	change, err := ledger.UpdateScore(ctx, score.Update{UserID: 1, CommunityID: 1, Delta: 0})
	if err != nil {
		t.Fatal(err)
	}
	if change.Committed || len(store.History()) != 0 {
		t.Fatal("zero delta must not be recorded by default")
	}

	change, err = ledger.UpdateScore(ctx, score.Update{UserID: 1, CommunityID: 1, Delta: 0, KeepZero: true})
	if err != nil {
		t.Fatal(err)
	}
	if !change.Committed || len(store.History()) != 1 {
		t.Fatal("explicit zero delta must be recorded")
	}
}

func TestUpdateScoreSameKeySerializes(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newLedger()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.UpdateScore(ctx, score.Update{UserID: 7, CommunityID: 1, Delta: 1}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, _ := ledger.GetScore(ctx, 7, 1)
	if got != 200 {
		t.Fatalf("score = %d, want 200", got)
	}
	for i, e := range store.History() {
		if e.PreviousScore != int64(i) || e.NewScore != int64(i+1) {
			t.Fatalf("entry %d not contiguous: %d -> %d", i, e.PreviousScore, e.NewScore)
		}
	}
}

func TestUpdateScorePropagatesStoreError(t *testing.T) {
	ledger, store, _ := newLedger()
	boom := errors.New("disk full")
	store.Err = boom

	_, err := ledger.UpdateScore(context.Background(), score.Update{UserID: 1, CommunityID: 1, Delta: 5})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestUpdateScoreTruncatesSnippet(t *testing.T) {
	ledger, store, _ := newLedger()
	long := make([]rune, 300)
	for i := range long {
		long[i] = 'я'
	}
	_, err := ledger.UpdateScore(context.Background(), score.Update{
		UserID: 1, CommunityID: 1, Delta: 1, SourceSnippet: string(long),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(store.History()[0].SourceSnippet)); n != 101 {
		t.Fatalf("snippet runes = %d, want 101", n)
	}
}

func TestLeaderboardAndStats(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newLedger()
	updates := []score.Update{
		{UserID: 1, CommunityID: 10, Delta: 50, DisplayName: "a"},
		{UserID: 2, CommunityID: 10, Delta: 80, DisplayName: "b"},
		{UserID: 3, CommunityID: 10, Delta: -20, DisplayName: "c"},
		{UserID: 1, CommunityID: 20, Delta: 100, DisplayName: "a"},
	}
	for _, u := range updates {
		if _, err := ledger.UpdateScore(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	top, err := ledger.GetLeaderboard(ctx, 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].UserID != 2 || top[1].UserID != 1 {
		t.Fatalf("community top = %+v", top)
	}

	global, _ := ledger.GetLeaderboard(ctx, score.GlobalCommunity, 10)
	if global[0].UserID != 1 || global[0].Score != 150 {
		t.Fatalf("global top = %+v", global[0])
	}

	stats, err := ledger.GetAggregateStats(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Count != 3 || stats.Max != 80 || stats.Min != -20 || stats.TotalChanges != 3 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Mean < 36.6 || stats.Mean > 36.7 {
		t.Fatalf("mean = %f", stats.Mean)
	}

	if _, err := ledger.GetLeaderboard(ctx, 10, 0); !errors.Is(err, common.ErrInvalidLimit) {
		t.Fatalf("zero limit err = %v", err)
	}
}
