package ratelimit

import (
	"os"
	"testing"
	"time"

	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

func TestKeyedLimiterBurstPerKey(t *testing.T) {
	l := NewKeyedLimiter(1, 2, time.Hour)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of 2 must be allowed")
	}
	if l.Allow("a") {
		t.Error("third request in the same instant must be limited")
	}
	if !l.Allow("b") {
		t.Error("other clients have their own bucket")
	}

	fixed = fixed.Add(time.Second)
	if !l.Allow("a") {
		t.Error("one token refills per second")
	}
}

func TestKeyedLimiterSweep(t *testing.T) {
	l := NewKeyedLimiter(10, 10, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(2 * time.Minute)
	l.Allow("fresh")

	if removed := l.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, expected 1", removed)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, expected 1", l.Len())
	}
}

func TestNoOp(t *testing.T) {
	var l Limiter = NoOp{}
	for i := 0; i < 100; i++ {
		if !l.Allow("x") {
			t.Fatal("NoOp must allow everything")
		}
	}
}
