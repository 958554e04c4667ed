package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-arena/internal/domain"
)

// PlayerStatsRepository folds finished games into player_stats rows.
type PlayerStatsRepository struct {
	pool *pgxpool.Pool
}

func NewPlayerStatsRepository(pool *pgxpool.Pool) *PlayerStatsRepository {
	return &PlayerStatsRepository{pool: pool}
}

const upsertStatsSQL = `
INSERT INTO player_stats (
	user_id,
	total_games_played,
	total_wins,
	total_podiums,
	total_questions_answered,
	total_correct_answers,
	best_streak,
	xp,
	level,
	last_played_at
)
VALUES ($1, 1, $2, $3, $4, $5, $6, $7, 1, CURRENT_TIMESTAMP)
ON CONFLICT (user_id) DO UPDATE SET
	total_games_played = player_stats.total_games_played + 1,
	total_wins = player_stats.total_wins + $2,
	total_podiums = player_stats.total_podiums + $3,
	total_questions_answered = player_stats.total_questions_answered + $4,
	total_correct_answers = player_stats.total_correct_answers + $5,
	best_streak = GREATEST(player_stats.best_streak, $6),
	xp = player_stats.xp + $7,
	last_played_at = CURRENT_TIMESTAMP,
	updated_at = CURRENT_TIMESTAMP`

// levelSQL derives level from accumulated XP: floor(sqrt(xp/100)) + 1.
const levelSQL = `
UPDATE player_stats
SET level = FLOOR(SQRT(xp / 100.0)) + 1
WHERE user_id = $1`

func (r *PlayerStatsRepository) UpsertStats(ctx context.Context, userID string, stats domain.GameResultStats) error {
	winInc, podiumInc := 0, 0
	if stats.IsWin {
		winInc = 1
	}
	if stats.IsPodium {
		podiumInc = 1
	}

	_, err := r.pool.Exec(ctx, upsertStatsSQL,
		userID, winInc, podiumInc,
		stats.QuestionsAnswered, stats.CorrectAnswers, stats.BestStreak, stats.XPEarned)
	if err != nil {
		return fmt.Errorf("upsert player stats: %w", err)
	}
	if _, err := r.pool.Exec(ctx, levelSQL, userID); err != nil {
		return fmt.Errorf("update player level: %w", err)
	}
	return nil
}
