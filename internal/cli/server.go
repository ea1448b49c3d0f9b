package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"livequiz-service/internal/app"
	"livequiz-service/internal/broadcast"
	"livequiz-service/internal/config"
	"livequiz-service/internal/domain"
	boltstore "livequiz-service/internal/infra/bolt"
	"livequiz-service/internal/infra/memory"
	pg "livequiz-service/internal/infra/postgres"
	redisstore "livequiz-service/internal/infra/redis"
	"livequiz-service/internal/logging"
	transport "livequiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
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

	logger := logging.NewLogger(cfg.Server.Debug)
	defer logger.Sync() //nolint:errcheck
	ctx = logging.WithLogger(ctx, logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
		loader = pg.NewQuizLoader(pool)
	}
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	cacheSize := cfg.Quiz.CacheSize
	if cacheSize <= 0 {
		cacheSize = 128
	}
	quizzes := memory.NewQuizRepository(loader, quizTTL, cacheSize)

	var store app.StateStore
	switch {
	case redisClient != nil:
		store = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, time.Hour))
		logger.Infow("session state in redis", "addr", cfg.Redis.Addr)
	case cfg.Bolt.Path != "":
		bs, err := boltstore.Open(cfg.Bolt.Path)
		if err != nil {
			return err
		}
		defer bs.Close()
		store = bs
		logger.Infow("session state in bolt", "path", cfg.Bolt.Path)
	default:
		store = memory.NewStateStore()
		logger.Infow("session state in memory only")
	}

	opts := []app.Option{}
	if cfg.Game.CodeLength > 0 {
		opts = append(opts, app.WithCodeLength(cfg.Game.CodeLength))
	}
	if pool != nil {
		opts = append(opts, app.WithArchiver(pg.NewSessionArchiver(pool)))
	}

	hub := broadcast.NewHub()
	coord := app.NewCoordinator(memory.NewGameRegistry(), quizzes, store, hub, opts...)
	gateway := transport.NewGateway(coord, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		gateway.ServeWS(w, r.WithContext(logging.WithLogger(r.Context(), logger)))
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		color.Green("livequiz listening on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("server stopped", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Infow("shutting down")
	case <-ctx.Done():
		logger.Infow("context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds a demo quiz so the server is playable without a
// database behind it.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"demo": {
			ID:    "demo",
			Title: "Demo quiz",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Type:         domain.SingleSelect,
					Text:         "What is 2 + 2?",
					TimeLimitSec: 20,
					Points:       100,
					Answers: []domain.Answer{
						{ID: "a", Text: "3"},
						{ID: "b", Text: "4", Correct: true},
						{ID: "c", Text: "5"},
					},
				},
				{
					ID:           "q2",
					Type:         domain.MultiSelect,
					Text:         "Which of these are prime?",
					TimeLimitSec: 30,
					Points:       100,
					Answers: []domain.Answer{
						{ID: "a", Text: "2", Correct: true},
						{ID: "b", Text: "4"},
						{ID: "c", Text: "7", Correct: true},
						{ID: "d", Text: "9"},
					},
				},
			},
		},
	}
}
