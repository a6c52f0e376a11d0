package admin

import (
	"errors"
	"testing"
	"time"

	"serotonyl.ru/reputation-bot/internal/clock"
	"serotonyl.ru/reputation-bot/internal/common"
)

// лёгкие параметры, чтобы тесты не тратили 64 MB на хеш
var testParams = HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 16}

func newService(adminIDs ...int64) (*Service, *clock.FakeClock) {
	clk := clock.Fake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	hash := HashPassword("секрет", []byte("0123456789abcdef"), testParams)
	return NewService(clk, hash, adminIDs), clk
}

func TestVerifyArgon2id(t *testing.T) {
	hash := HashPassword("pass", []byte("saltsaltsaltsalt"), testParams)
	if !verifyArgon2id("pass", hash) {
		t.Fatal("correct password rejected")
	}
	if verifyArgon2id("Pass", hash) {
		t.Fatal("wrong password accepted")
	}
	for _, bad := range []string{"", "plain", "$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA", "$argon2id$v=19$oops$c2FsdA$aGFzaA"} {
		if verifyArgon2id("pass", bad) {
			t.Errorf("malformed hash %q accepted", bad)
		}
	}
}

func TestLoginOpensSession(t *testing.T) {
	s, clk := newService()
	if s.IsAdmin(7) {
		t.Fatal("admin before login")
	}
	if _, err := s.Login(7, "секрет"); err != nil {
		t.Fatal(err)
	}
	if err := s.Require(7); err != nil {
		t.Fatal(err)
	}

	clk.Advance(SessionTTL)
	if s.IsAdmin(7) {
		t.Fatal("session outlived its TTL")
	}
}

func TestLoginLockout(t *testing.T) {
	s, clk := newService()
	for i := 0; i < MaxAttempts; i++ {
		if _, err := s.Login(7, "угадаю"); !errors.Is(err, common.ErrWrongPassword) {
			t.Fatalf("attempt %d err = %v", i, err)
		}
	}
	if _, err := s.Login(7, "секрет"); !errors.Is(err, common.ErrTooManyAttempts) {
		t.Fatalf("err = %v, want lockout", err)
	}
	if _, err := s.Login(8, "секрет"); err != nil {
		t.Fatalf("other user locked out: %v", err)
	}

	clk.Advance(AttemptWindow)
	if _, err := s.Login(7, "секрет"); err != nil {
		t.Fatalf("lockout not lifted: %v", err)
	}
}

func TestStaticAdminsAndLogout(t *testing.T) {
	s, _ := newService(100)
	if !s.IsAdmin(100) {
		t.Fatal("ADMIN_IDS member is not admin")
	}
	s.Login(5, "секрет")
	s.Logout(5)
	if !errors.Is(s.Require(5), common.ErrNotAdmin) {
		t.Fatal("session survived logout")
	}

	disabled := NewService(clock.Fake(time.Unix(0, 0)), "", nil)
	if _, err := disabled.Login(1, ""); !errors.Is(err, common.ErrNotAdmin) {
		t.Fatalf("login without hash err = %v", err)
	}
}
