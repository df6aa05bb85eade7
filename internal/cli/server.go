package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/hub"
	"live-quiz-service/internal/infra/memory"
	natsrelay "live-quiz-service/internal/infra/nats"
	pgloader "live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	redisClient := newRedisClient(cfg)
	if redisClient != nil {
		defer redisClient.Close()
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
		loader = pgloader.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	h := hub.New(cfg.WS.BufferSize)
	var pub app.Publisher = h
	if cfg.NATS.URL != "" {
		natsCfg := natsrelay.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		nc, err := natsrelay.Connect(natsCfg)
		if err != nil {
			return err
		}
		defer nc.Close()
		pub = natsrelay.NewEventRelay(h, nc, cfg.NATS.SubjectPrefix)
		log.Info().Str("url", cfg.NATS.URL).Msg("relaying session events to NATS")
	}

	registry := app.NewRegistry(pub,
		app.WithRegistryConfig(registryConfig(cfg)),
		app.WithSnapshotStore(snapshotStore(cfg, redisClient)),
	)
	defer registry.Close()

	service := app.NewQuizService(registry, quizRepo)
	router := transport.NewRouter(
		transport.NewAdminHandler(service, h),
		transport.NewWSHandler(service, h, transport.DefaultWSConfig()),
		cfg.Server.AllowedOrigins,
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", finalPort).Bool("redis", redisClient != nil).Bool("postgres", pool != nil).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return registry.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func registryConfig(cfg config.Config) app.RegistryConfig {
	rc := app.DefaultRegistryConfig()
	rc.Retention = config.TTLDuration(cfg.Session.Retention, rc.Retention)
	rc.SweepInterval = config.TTLDuration(cfg.Session.SweepInterval, rc.SweepInterval)
	rc.Engine.ResultsDelay = config.TTLDuration(cfg.Session.ResultsDelay, rc.Engine.ResultsDelay)
	if cfg.Session.MaxPlayers > 0 {
		rc.Engine.MaxPlayers = cfg.Session.MaxPlayers
	}
	return rc
}

// sampleQuizzes serves as quiz content when no Postgres is configured.
// newRedisClient returns nil when no Redis address is configured.
func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// snapshotStore keeps session records in Redis when configured and in process memory otherwise.
func snapshotStore(cfg config.Config, client *redis.Client) app.SnapshotStore {
	if client == nil {
		return memory.NewSessionStore()
	}
	return redisinfra.NewSessionStore(client, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "General knowledge warm-up",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Text:         "What is 2 + 2?",
					Options:      []string{"3", "4", "5", "22"},
					CorrectIndex: 1,
					TimeLimit:    20,
					Points:       1000,
				},
				{
					ID:           "q2",
					Text:         "Which planet is known as the Red Planet?",
					Options:      []string{"Venus", "Mars", "Jupiter", "Mercury"},
					CorrectIndex: 1,
					TimeLimit:    20,
					Points:       1000,
				},
				{
					ID:           "q3",
					Text:         "Water boils at 100°C at sea level.",
					Options:      []string{"True", "False"},
					CorrectIndex: 0,
					TimeLimit:    10,
					Points:       500,
				},
			},
		},
	}
}
