package effects

import (
	"errors"
	"sync"
	"testing"
	"time"

	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/common"
)

func newRegistry() (*Registry, *clock.FakeClock) {
	clk := clock.Fake(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	return NewRegistry(clk), clk
}

func TestApplyEffectStartsCooldown(t *testing.T) {
	r, clk := newRegistry()
	if _, err := r.ApplyEffect(1, 10, TypeCooldown, 10*time.Minute, "", Metadata{}); err != nil {
		t.Fatal(err)
	}

	cd := r.IsOnCooldown(1, TypeCooldown, nil)
	if !cd.OnCooldown || cd.TimeLeft != 10*time.Minute {
		t.Fatalf("cooldown = %+v", cd)
	}

	clk.Advance(10*time.Minute + time.Second)
	if cd := r.IsOnCooldown(1, TypeCooldown, nil); cd.OnCooldown {
		t.Fatalf("cooldown still active after expiry: %+v", cd)
	}
	if n := len(r.GetActiveEffects(1)); n != 0 {
		t.Fatalf("active effects = %d, want 0 without sweep", n)
	}
}

func TestExpiryExactBoundaryIsInactive(t *testing.T) {
	r, clk := newRegistry()
	r.ApplyEffect(1, 10, TypeTimeout, time.Minute, "", Metadata{})
	clk.Advance(time.Minute)
	if len(r.GetEffectsByType(1, TypeTimeout)) != 0 {
		t.Fatal("effect with expiresAt == now must be inactive")
	}
}

func TestApplyEffectValidation(t *testing.T) {
	r, _ := newRegistry()
	cases := []struct {
		name string
		typ  Type
		dur  time.Duration
		meta Metadata
		want error
	}{
		{"zero duration", TypeCooldown, 0, Metadata{}, common.ErrInvalidDuration},
		{"unknown type", Type("hex"), time.Minute, Metadata{}, common.ErrUnknownEffectType},
		{"multiplier on cooldown", TypeCooldown, time.Minute, Metadata{Multiplier: 2}, common.ErrInvalidEffectMetadata},
		{"multiplier marker without value", TypeEventMultiplier, time.Minute, Metadata{}, common.ErrInvalidEffectMetadata},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.ApplyEffect(1, 1, tc.typ, tc.dur, "", tc.meta); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCooldownsDisambiguatedByReason(t *testing.T) {
	r, clk := newRegistry()
	r.ApplyEffect(1, 10, TypeCooldown, 5*time.Minute, "", Metadata{Reason: "gift"})
	r.ApplyEffect(1, 10, TypeCooldown, 30*time.Minute, "", Metadata{Reason: "quiz"})
	r.ApplyEffect(1, 10, TypeCooldown, time.Hour, "", Metadata{Reason: "reroll"})

	if got := len(r.GetEffectsByType(1, TypeCooldown)); got != 3 {
		t.Fatalf("coexisting cooldowns = %d, want 3", got)
	}

	cd := r.IsOnCooldown(1, TypeCooldown, &Filter{Reason: "quiz"})
	if !cd.OnCooldown || cd.TimeLeft != 30*time.Minute {
		t.Fatalf("quiz cooldown = %+v", cd)
	}
	if cd := r.IsOnCooldown(1, TypeCooldown, &Filter{Reason: "duel"}); cd.OnCooldown {
		t.Fatal("unrelated reason must not be on cooldown")
	}
	if cd := r.IsOnCooldown(1, TypeCooldown, nil); cd.TimeLeft != time.Hour {
		t.Fatalf("unfiltered time left = %v, want longest", cd.TimeLeft)
	}

	clk.Advance(6 * time.Minute)
	if cd := r.IsOnCooldown(1, TypeCooldown, &Filter{Reason: "gift"}); cd.OnCooldown {
		t.Fatal("gift cooldown should have expired")
	}
}

func TestRemoveEffect(t *testing.T) {
	r, _ := newRegistry()
	id, _ := r.ApplyEffect(1, 10, TypeNicknameChange, time.Hour, "old-nick", Metadata{})
	r.ApplyEffect(1, 10, TypeRoleGrant, time.Hour, "", Metadata{})
	r.ApplyEffect(1, 10, TypeRoleGrant, time.Hour, "", Metadata{})

	effects := r.GetEffectsByType(1, TypeNicknameChange)
	if len(effects) != 1 || effects[0].OriginalValue != "old-nick" {
		t.Fatalf("nickname effects = %+v", effects)
	}
	if !r.RemoveEffect(1, id) {
		t.Fatal("RemoveEffect returned false")
	}
	if r.RemoveEffect(1, id) {
		t.Fatal("second RemoveEffect returned true")
	}
	if r.RemoveEffect(99, id) {
		t.Fatal("RemoveEffect for unknown user returned true")
	}
	if n := r.RemoveEffectsByType(1, TypeRoleGrant); n != 2 {
		t.Fatalf("RemoveEffectsByType = %d, want 2", n)
	}
	if len(r.GetActiveEffects(1)) != 0 {
		t.Fatal("effects left after removal")
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	r, clk := newRegistry()
	r.ApplyEffect(1, 10, TypeCooldown, time.Minute, "", Metadata{})
	r.ApplyEffect(2, 10, TypeCooldown, time.Hour, "", Metadata{})

	clk.Advance(2 * time.Minute)
	if n := r.Sweep(); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}
	if len(r.GetActiveEffects(2)) != 1 {
		t.Fatal("sweep removed a live effect")
	}
}

func TestConcurrentApplyAndSweep(t *testing.T) {
	r, _ := newRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.ApplyEffect(1, 1, TypeCooldown, time.Hour, "", Metadata{})
		}()
		go func() {
			defer wg.Done()
			r.Sweep()
		}()
	}
	wg.Wait()
	if n := len(r.GetActiveEffects(1)); n != 50 {
		t.Fatalf("active = %d, want 50", n)
	}
}

func TestTryApplySingleWinner(t *testing.T) {
	r, _ := newRegistry()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, cd, err := r.TryApply(1, 10, TypeThanksCooldown, time.Hour, Metadata{Reason: "10:2"})
			if err != nil {
				t.Error(err)
				return
			}
			if id != "" && !cd.OnCooldown {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
	if n := len(r.GetEffectsByType(1, TypeThanksCooldown)); n != 1 {
		t.Fatalf("effects = %d, want 1", n)
	}
}

func TestTryApplyRespectsReasonAndExpiry(t *testing.T) {
	r, clk := newRegistry()
	if _, cd, _ := r.TryApply(1, 10, TypeConfessionCooldown, time.Hour, Metadata{Reason: "10"}); cd.OnCooldown {
		t.Fatal("first apply refused")
	}

	clk.Advance(20 * time.Minute)
	id, cd, _ := r.TryApply(1, 10, TypeConfessionCooldown, time.Hour, Metadata{Reason: "10"})
	if id != "" || !cd.OnCooldown || cd.TimeLeft != 40*time.Minute {
		t.Fatalf("second apply: id=%q cd=%+v", id, cd)
	}

	// другое сообщество — другой кулдаун
	if _, cd, _ := r.TryApply(1, 20, TypeConfessionCooldown, time.Hour, Metadata{Reason: "20"}); cd.OnCooldown {
		t.Fatal("cooldown leaked across reasons")
	}

	clk.Advance(40 * time.Minute)
	if _, cd, _ := r.TryApply(1, 10, TypeConfessionCooldown, time.Hour, Metadata{Reason: "10"}); cd.OnCooldown {
		t.Fatal("expired cooldown still blocks")
	}
}

func TestTryApplyValidates(t *testing.T) {
	r, _ := newRegistry()
	if _, _, err := r.TryApply(1, 10, TypeCooldown, 0, Metadata{}); !errors.Is(err, common.ErrInvalidDuration) {
		t.Fatalf("err = %v", err)
	}
}
