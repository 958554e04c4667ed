package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-arena/internal/app"
	"trivia-arena/internal/config"
	"trivia-arena/internal/domain"
	"trivia-arena/internal/infra/memory"
	pgstore "trivia-arena/internal/infra/postgres"
	redisstore "trivia-arena/internal/infra/redis"
	"trivia-arena/internal/logging"
	transport "trivia-arena/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(logging.ParseLevel(cfg.Log.Level))

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}
	baseURL := cfg.Server.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + finalPort
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var roomRepo app.RoomMetadataRepository = memory.NewRoomMetadataRepository()
	var statsRepo app.PlayerStatsRepository = memory.NewPlayerStatsRepository()
	if pool != nil {
		roomRepo = pgstore.NewRoomMetadataRepository(pool)
		statsRepo = pgstore.NewPlayerStatsRepository(pool)
	}

	delays := app.DefaultDelays()
	delays.Feedback = config.Duration(cfg.Game.FeedbackDelay, delays.Feedback)
	delays.Ranking = config.Duration(cfg.Game.RankingDelay, delays.Ranking)
	delays.FirstQuestion = config.Duration(cfg.Game.FirstQuestionDelay, delays.FirstQuestion)
	delays.AnswerGrace = config.Duration(cfg.Game.AnswerGrace, delays.AnswerGrace)

	hub := transport.NewHub()
	scheduler := app.ClockScheduler{}
	registry := app.NewRegistry()
	orch := app.NewOrchestrator(registry, hub, scheduler, roomRepo, statsRepo, logger, delays)
	service := app.NewGameService(registry, orch, quizRepo, roomRepo, hub, scheduler, logger, delays, baseURL)

	reapCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	roomTTL := config.Duration(cfg.Game.RoomTTL, 2*time.Hour)
	reapInterval := config.Duration(cfg.Game.ReapInterval, 5*time.Minute)
	registry.StartReaper(reapCtx, reapInterval, roomTTL, 15*time.Minute, logger)

	wsHandler := transport.NewWSHandler(service, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting trivia server", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds the in-memory loader so the server is playable without
// a database.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-general": {
			ID:    "quiz-general",
			Title: "General Knowledge",
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is the capital of France?",
					Options: []domain.Option{
						{ID: "o1", Text: "Lyon"},
						{ID: "o2", Text: "Paris", IsCorrect: true},
						{ID: "o3", Text: "Marseille"},
						{ID: "o4", Text: "Nice"},
					},
					TimeLimit: 15000,
				},
				{
					ID:   "q2",
					Text: "Which planet is known as the Red Planet?",
					Options: []domain.Option{
						{ID: "o1", Text: "Venus"},
						{ID: "o2", Text: "Jupiter"},
						{ID: "o3", Text: "Mars", IsCorrect: true},
						{ID: "o4", Text: "Saturn"},
					},
					TimeLimit: 15000,
				},
				{
					ID:   "q3",
					Text: "What is 7 x 8?",
					Options: []domain.Option{
						{ID: "o1", Text: "54"},
						{ID: "o2", Text: "56", IsCorrect: true},
						{ID: "o3", Text: "63"},
						{ID: "o4", Text: "48"},
					},
					TimeLimit: 10000,
				},
			},
		},
	}
}
