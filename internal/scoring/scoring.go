// Package scoring holds the pure point/streak/accuracy math. Nothing here
// keeps state; the room aggregate owns all mutation.
package scoring

import "math"

const (
	// BasePoints is what an instant correct answer is worth before streaks.
	BasePoints = 1000
	// MinPoints is the floor a correct answer can decay to.
	MinPoints = 200
	// StreakStep is the multiplier gained per consecutive correct answer.
	StreakStep = 0.10
	// MaxStreakMultiplier caps the streak bonus (reached at streak 10).
	MaxStreakMultiplier = 2.0
)

// Points computes the score for a correct answer. Elapsed and limit are
// milliseconds. The value decays linearly from BasePoints at t=0 to
// MinPoints at t=limit, then the streak multiplier 1 + 0.10*streak (capped
// at 2.0) is applied and the result floored. Incorrect answers never reach
// this function; they score 0 by definition.
func Points(timeLimit, elapsed int64, streak int) int {
	if timeLimit <= 0 {
		return MinPoints
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > timeLimit {
		elapsed = timeLimit
	}

	fraction := float64(elapsed) / float64(timeLimit)
	points := BasePoints - fraction*(BasePoints-MinPoints)
	if points < MinPoints {
		points = MinPoints
	}

	if streak > 0 {
		multiplier := 1 + float64(streak)*StreakStep
		if multiplier > MaxStreakMultiplier {
			multiplier = MaxStreakMultiplier
		}
		points *= multiplier
	}

	return int(math.Floor(points))
}

// NextStreak returns the streak after one answer: +1 on a correct answer,
// reset to zero on a miss.
func NextStreak(current int, correct bool) int {
	if correct {
		return current + 1
	}
	return 0
}

// Accuracy returns the rounded percentage of correct answers, 0..100.
func Accuracy(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
