package common

import (
	"testing"
	"time"
)

func TestPluralizePoints(t *testing.T) {
	cases := map[int64]string{
		0: "очков", 1: "очко", 2: "очка", 5: "очков", 11: "очков",
		12: "очков", 21: "очко", 22: "очка", 101: "очко", -3: "очка",
	}
	for n, want := range cases {
		if got := PluralizePoints(n); got != want {
			t.Errorf("PluralizePoints(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatDelta(t *testing.T) {
	if got := FormatDelta(10); got != "+10 очков" {
		t.Errorf("FormatDelta(10) = %q", got)
	}
	if got := FormatDelta(-1); got != "-1 очко" {
		t.Errorf("FormatDelta(-1) = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[int64]string{0: "0", 999: "999", 2350: "2 350", 1000005: "1 000 005", -4200: "-4 200"}
	for n, want := range cases {
		if got := FormatNumber(n); got != want {
			t.Errorf("FormatNumber(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(20 * time.Second); got != "меньше минуты" {
		t.Errorf("got %q", got)
	}
	if got := FormatDuration(5 * time.Minute); got != "5 минут" {
		t.Errorf("got %q", got)
	}
	if got := FormatDuration(90 * time.Minute); got != "1 ч 30 мин" {
		t.Errorf("got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("привет", 3); got != "при…" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("ok", 10); got != "ok" {
		t.Errorf("got %q", got)
	}
}
