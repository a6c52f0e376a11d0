package jobs

import (
	"context"
	"testing"

	"serotonyl.ru/reputation-bot/internal/features/events"
)

type fakeTrigger struct {
	calls []int64
	busy  map[int64]bool
}

func (f *fakeTrigger) TriggerRandom(_ context.Context, communityID int64) (events.Campaign, bool) {
	f.calls = append(f.calls, communityID)
	if f.busy[communityID] {
		return events.Campaign{}, false
	}
	return events.Campaign{CommunityID: communityID, Type: events.TypeDoublePoints}, true
}

type staticCommunities []int64

func (s staticCommunities) Communities() []int64 { return s }

type countingSweeper struct{ n int }

func (c *countingSweeper) Sweep() int { c.n++; return 0 }

func TestTickEventsRollsPerCommunity(t *testing.T) {
	trigger := &fakeTrigger{busy: map[int64]bool{3: true}}
	s := NewScheduler(Options{EventChance: 0.5, EventsEnabled: true}, &countingSweeper{}, nil, trigger, staticCommunities{1, 2, 3})

	rolls := []float64{0.1, 0.9, 0.2}
	s.roll = func() float64 {
		r := rolls[0]
		rolls = rolls[1:]
		return r
	}

	started := s.TickEvents(context.Background())
	if started != 1 {
		t.Fatalf("started = %d, want 1", started)
	}
	if len(trigger.calls) != 2 || trigger.calls[0] != 1 || trigger.calls[1] != 3 {
		t.Fatalf("triggered = %v, want [1 3]", trigger.calls)
	}
}

func TestTickEventsZeroChance(t *testing.T) {
	trigger := &fakeTrigger{}
	s := NewScheduler(Options{EventChance: 0}, &countingSweeper{}, nil, trigger, staticCommunities{1, 2})
	s.roll = func() float64 { return 0 }

	if n := s.TickEvents(context.Background()); n != 0 || len(trigger.calls) != 0 {
		t.Fatalf("started %d, calls %v", n, trigger.calls)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(Options{
		EffectSweepInterval: 0,
		TrackerSweepSpec:    "not a cron expression",
	}, sweeper, sweeper, nil, staticCommunities{})
	if err := s.Start(context.Background()); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid schedule")
	}
}
