package client

import (
	"testing"
	"time"

	"github.com/decred/slog"

	"github.com/cardroom/cardroom/pkg/wire"
)

func watchdogFixture(t *testing.T) (*Store, *watchdog, *int) {
	t.Helper()
	s := newStore(nil)
	s.Reset("room-1", "euchre")
	requests := 0
	wd := &watchdog{
		store:   s,
		log:     slog.Disabled,
		request: func() { requests++ },
	}
	return s, wd, &requests
}

func TestWatchdogQuietBeforeFirstSnapshot(t *testing.T) {
	_, wd, requests := watchdogFixture(t)
	wd.check(time.Now().Add(time.Hour))
	if *requests != 0 {
		t.Fatalf("watchdog fired before any snapshot")
	}
}

func TestWatchdogMyTurnThreshold(t *testing.T) {
	s, wd, requests := watchdogFixture(t)
	now := time.Now()
	s.ApplySnapshot(snap(1, 0, 0), now) // our turn via hints fallback

	wd.check(now.Add(8 * time.Second))
	if *requests != 0 {
		t.Fatalf("fired below the my-turn threshold")
	}
	wd.check(now.Add(11 * time.Second))
	if *requests != 1 {
		t.Fatalf("did not fire past the my-turn threshold")
	}
}

func TestWatchdogIdleThreshold(t *testing.T) {
	s, wd, requests := watchdogFixture(t)
	now := time.Now()
	s.ApplySnapshot(snap(1, 1, 0), now) // someone else acts

	wd.check(now.Add(15 * time.Second))
	if *requests != 0 {
		t.Fatalf("fired below the idle threshold")
	}
	wd.check(now.Add(31 * time.Second))
	if *requests != 1 {
		t.Fatalf("did not fire past the idle threshold")
	}
}

func TestWatchdogSilentAfterGameOver(t *testing.T) {
	s, wd, requests := watchdogFixture(t)
	now := time.Now()
	s.ApplySnapshot(snap(1, 1, 0), now)
	s.ApplyGameOver(&wire.GameOver{}, now)

	wd.check(now.Add(time.Hour))
	if *requests != 0 {
		t.Fatalf("watchdog fired after game over")
	}
}
