package scoring

import "testing"

func TestPointsDecayMonotonic(t *testing.T) {
	const limit = int64(10000)
	prev := Points(limit, 0, 0)
	if prev != BasePoints {
		t.Fatalf("expected %d at t=0, got %d", BasePoints, prev)
	}
	for elapsed := int64(500); elapsed <= limit; elapsed += 500 {
		p := Points(limit, elapsed, 0)
		if p > prev {
			t.Fatalf("points increased from %d to %d at elapsed=%d", prev, p, elapsed)
		}
		prev = p
	}
	if got := Points(limit, limit, 0); got != MinPoints {
		t.Fatalf("expected floor %d at t=limit, got %d", MinPoints, got)
	}
}

func TestPointsClampsElapsed(t *testing.T) {
	const limit = int64(5000)
	if got := Points(limit, -100, 0); got != BasePoints {
		t.Fatalf("negative elapsed should clamp to 0, got %d", got)
	}
	if got := Points(limit, limit*3, 0); got != MinPoints {
		t.Fatalf("oversized elapsed should clamp to limit, got %d", got)
	}
}

func TestPointsStreakMultiplier(t *testing.T) {
	const limit = int64(10000)
	// Streak 1 at t=0: 1000 * 1.1 = 1100.
	if got := Points(limit, 0, 1); got != 1100 {
		t.Fatalf("streak 1 at t=0: expected 1100, got %d", got)
	}
	// Streak 10 reaches the 2.0 cap; larger streaks must not exceed it.
	capAt10 := Points(limit, 0, 10)
	if capAt10 != 2000 {
		t.Fatalf("streak 10 at t=0: expected 2000, got %d", capAt10)
	}
	if got := Points(limit, 0, 100); got != capAt10 {
		t.Fatalf("streak 100 should match capped streak 10: %d vs %d", got, capAt10)
	}
	// Cap applies at the floor too: 200 * 2.0.
	if got := Points(limit, limit, 25); got != 400 {
		t.Fatalf("capped floor: expected 400, got %d", got)
	}
}

func TestNextStreak(t *testing.T) {
	if got := NextStreak(5, true); got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}
	if got := NextStreak(5, false); got != 0 {
		t.Fatalf("expected reset to 0, got %d", got)
	}
}

func TestAccuracy(t *testing.T) {
	if got := Accuracy(0, 0); got != 0 {
		t.Fatalf("empty accuracy should be 0, got %d", got)
	}
	if got := Accuracy(1, 3); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
	if got := Accuracy(2, 3); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
	for correct := 0; correct <= 10; correct++ {
		got := Accuracy(correct, 10)
		if got < 0 || got > 100 {
			t.Fatalf("accuracy out of bounds: %d", got)
		}
	}
}
