package migrations

import (
	_ "embed"

	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_quizzes.sql
var createQuizzesSQL string

//go:embed 0002_create_game_sessions.sql
var createGameSessionsSQL string

//go:embed 0003_create_player_stats.sql
var createPlayerStatsSQL string

var Migrations = migrate.NewMigrations()
