package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"trivia-arena/internal/app"
	"trivia-arena/internal/domain"
	pgstore "trivia-arena/internal/infra/postgres"
	pgmigrations "trivia-arena/internal/infra/postgres/migrations"
	redisstore "trivia-arena/internal/infra/redis"
)

// queueScheduler runs callbacks on demand so the test controls every timed
// transition.
type queueScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (s *queueScheduler) AfterFunc(_ time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, fn)
}

func (s *queueScheduler) fire(n int) {
	for i := 0; i < n; i++ {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		fn()
	}
}

func TestFullGamePersistsLifetimeStats(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	quizRepo := redisstore.NewQuizRepository(redisClient, pgstore.NewQuizLoader(pool), 5*time.Minute)
	roomRepo := pgstore.NewRoomMetadataRepository(pool)
	statsRepo := pgstore.NewPlayerStatsRepository(pool)

	registry := app.NewRegistry()
	scheduler := &queueScheduler{}
	orch := app.NewOrchestrator(registry, app.NopEmitter{}, scheduler, roomRepo, statsRepo, logger, app.DefaultDelays())
	service := app.NewGameService(registry, orch, quizRepo, roomRepo, app.NopEmitter{}, scheduler, logger, app.DefaultDelays(), "http://localhost")

	result, err := service.CreateRoom(ctx, "quiz-1", "Host", domain.ModeFast)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	code := result.Room.Code

	if n, _ := redisClient.Exists(ctx, "quiz:quiz-1:content").Result(); n != 1 {
		t.Fatalf("expected quiz cached in redis")
	}

	_, alice, err := service.JoinRoom(code, "Alice", "user-alice")
	if err != nil {
		t.Fatalf("join alice: %v", err)
	}
	_, bob, err := service.JoinRoom(code, "Bob", "user-bob")
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}

	if _, err := service.StartRoom(ctx, code, result.Room.HostID); err != nil {
		t.Fatalf("start room: %v", err)
	}
	scheduler.fire(1) // first-question delay

	// Alice correct, Bob wrong; client-reported timings are honest so the
	// score is deterministic.
	if _, err := service.SubmitAnswer(code, alice.ID, "q1", "o2", 0); err != nil {
		t.Fatalf("alice answer: %v", err)
	}
	if _, err := service.SubmitAnswer(code, bob.ID, "q1", "o1", 0); err != nil {
		t.Fatalf("bob answer: %v", err)
	}

	// Two stale deadlines, two feedback timers, two ranking timers finish
	// the single-question game.
	scheduler.fire(6)

	var status string
	var totalPlayers int
	if err := pool.QueryRow(ctx,
		`SELECT status, total_players FROM game_sessions WHERE code=$1`, code).
		Scan(&status, &totalPlayers); err != nil {
		t.Fatalf("query session: %v", err)
	}
	if status != string(domain.RoomFinished) || totalPlayers != 2 {
		t.Fatalf("unexpected session row: status=%s players=%d", status, totalPlayers)
	}

	// Alice: 1000 points -> 100 XP + 500 winner bonus, level floor(sqrt(6))+1.
	assertStats(t, ctx, pool, "user-alice", 1, 1, 600, 3)
	// Bob: 0 points -> 300 runner-up bonus, level 2.
	assertStats(t, ctx, pool, "user-bob", 0, 1, 300, 2)

	// A second finished game accumulates instead of overwriting.
	result2, err := service.CreateRoom(ctx, "quiz-1", "Host", domain.ModeFast)
	if err != nil {
		t.Fatalf("create room 2: %v", err)
	}
	_, alice2, err := service.JoinRoom(result2.Room.Code, "Alice", "user-alice")
	if err != nil {
		t.Fatalf("rejoin alice: %v", err)
	}
	if _, err := service.StartRoom(ctx, result2.Room.Code, result2.Room.HostID); err != nil {
		t.Fatalf("start room 2: %v", err)
	}
	scheduler.fire(1)
	if _, err := service.SubmitAnswer(result2.Room.Code, alice2.ID, "q1", "o2", 0); err != nil {
		t.Fatalf("alice answer 2: %v", err)
	}
	scheduler.fire(3)

	var games, wins int
	if err := pool.QueryRow(ctx,
		`SELECT total_games_played, total_wins FROM player_stats WHERE user_id=$1`, "user-alice").
		Scan(&games, &wins); err != nil {
		t.Fatalf("query stats: %v", err)
	}
	if games != 2 || wins != 2 {
		t.Fatalf("expected accumulated stats, got games=%d wins=%d", games, wins)
	}
}

func assertStats(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userID string, wins, podiums, xp, level int) {
	t.Helper()
	var gotWins, gotPodiums, gotXP, gotLevel int
	err := pool.QueryRow(ctx,
		`SELECT total_wins, total_podiums, xp, level FROM player_stats WHERE user_id=$1`, userID).
		Scan(&gotWins, &gotPodiums, &gotXP, &gotLevel)
	if err != nil {
		t.Fatalf("query stats for %s: %v", userID, err)
	}
	if gotWins != wins || gotPodiums != podiums || gotXP != xp || gotLevel != level {
		t.Fatalf("unexpected stats for %s: wins=%d podiums=%d xp=%d level=%d",
			userID, gotWins, gotPodiums, gotXP, gotLevel)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Integration",
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4", IsCorrect: true},
					{ID: "o3", Text: "5"},
				},
				TimeLimit: 10000,
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
