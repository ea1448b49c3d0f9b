package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
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

	"livequiz-service/internal/app"
	"livequiz-service/internal/broadcast"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
	pg "livequiz-service/internal/infra/postgres"
	pgmigrations "livequiz-service/internal/infra/postgres/migrations"
	infraredis "livequiz-service/internal/infra/redis"
)

func TestGameRoundTripEndToEnd(t *testing.T) {
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

	quizzes := memory.NewQuizRepository(pg.NewQuizLoader(pool), 5*time.Minute, 8)
	store := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	hub := broadcast.NewHub()
	coord := app.NewCoordinator(memory.NewGameRegistry(), quizzes, store, hub,
		app.WithArchiver(pg.NewSessionArchiver(pool)))

	session, err := coord.CreateGame(ctx, "quiz-1", true)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	code := session.Code

	alice, err := coord.Join(ctx, code, "conn-1", "Alice", "en", "")
	if err != nil {
		t.Fatalf("join alice: %v", err)
	}
	bob, err := coord.Join(ctx, code, "conn-2", "Bob", "en", "")
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if err := coord.Start(ctx, code); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := coord.SubmitAnswer(ctx, code, alice.ID, "q1", []string{"b"})
	if err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if !res.Correct || res.Points <= 0 {
		t.Fatalf("expected scored answer, got %+v", res)
	}
	if _, err := coord.SubmitAnswer(ctx, code, bob.ID, "q1", []string{"a"}); err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	if _, err := coord.SubmitAnswer(ctx, code, alice.ID, "q1", []string{"b"}); err != domain.ErrAlreadyAnswered {
		t.Fatalf("replay accepted, err=%v", err)
	}

	if err := coord.EndGame(ctx, code); err != nil {
		t.Fatalf("end: %v", err)
	}

	// Live state is released; the snapshot must rebuild from redis.
	snap, err := coord.Snapshot(ctx, code)
	if err != nil {
		t.Fatalf("snapshot from store: %v", err)
	}
	if snap.Session.Status != domain.StatusFinished {
		t.Fatalf("expected FINISHED, got %s", snap.Session.Status)
	}
	if len(snap.Players) != 2 || snap.Players[0].Name != "Alice" || snap.Players[0].Score != res.Points {
		t.Fatalf("recovered ranking wrong: %+v", snap.Players)
	}

	// The archiver wrote the permanent record.
	var status string
	var playerCount int
	if err := pool.QueryRow(ctx,
		`SELECT status, player_count FROM game_sessions WHERE code = $1`, code).
		Scan(&status, &playerCount); err != nil {
		t.Fatalf("archived row: %v", err)
	}
	if status != string(domain.StatusFinished) || playerCount != 2 {
		t.Fatalf("unexpected archive status=%s players=%d", status, playerCount)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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
				ID:           "q1",
				Type:         domain.SingleSelect,
				Text:         "What is 2 + 2?",
				TimeLimitSec: 30,
				Points:       100,
				Answers: []domain.Answer{
					{ID: "a", Text: "3"},
					{ID: "b", Text: "4", Correct: true},
					{ID: "c", Text: "5"},
				},
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
