package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-arena/internal/domain"
)

// RoomMetadataRepository persists room session metadata. The live game never
// touches the database; only lobby/playing/finished transitions land here.
type RoomMetadataRepository struct {
	pool *pgxpool.Pool
}

func NewRoomMetadataRepository(pool *pgxpool.Pool) *RoomMetadataRepository {
	return &RoomMetadataRepository{pool: pool}
}

func (r *RoomMetadataRepository) CreateRoomRecord(ctx context.Context, code, quizID, hostName string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO game_sessions (code, quiz_id, host_name, status) VALUES ($1, $2, $3, $4)`,
		code, quizID, hostName, string(domain.RoomLobby))
	if err != nil {
		return fmt.Errorf("create room record: %w", err)
	}
	return nil
}

func (r *RoomMetadataRepository) UpdateRoomStatus(ctx context.Context, code string, status domain.RoomStatus, totalPlayers int) error {
	query := `UPDATE game_sessions SET status = $2`
	args := []interface{}{code, string(status)}

	switch status {
	case domain.RoomPlaying:
		query += `, started_at = CURRENT_TIMESTAMP`
	case domain.RoomFinished:
		query += `, finished_at = CURRENT_TIMESTAMP`
	}
	if totalPlayers > 0 {
		query += fmt.Sprintf(`, total_players = $%d`, len(args)+1)
		args = append(args, totalPlayers)
	}
	query += ` WHERE code = $1`

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update room status: %w", err)
	}
	return nil
}

func (r *RoomMetadataRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM game_sessions WHERE code = $1 AND status <> $2`,
		code, string(domain.RoomFinished)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check code: %w", err)
	}
	return count > 0, nil
}
