package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/config"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/infra/collab"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/infra/memory"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/infra/postgres"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/infra/rabbit"
	redisstore "github.com/CasperKristoff/AI-Toastmaster-sub000/internal/infra/redis"
	transport "github.com/CasperKristoff/AI-Toastmaster-sub000/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
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
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 12*time.Hour)

	var quizStore app.QuizStore = memory.NewQuizStore(sampleQuizzes())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		quizStore = postgres.NewSegmentStore(pool)
	} else {
		logger.Warn("postgres not configured, serving the built-in sample quiz")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, quizStore, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(quizStore, quizTTL)
	}

	var store app.SessionStore
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, redisTTL, logger)
	} else {
		logger.Warn("redis not configured, sessions live in this process only")
		store = memory.NewSessionStore()
	}

	var events app.EventPublisher = app.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbit.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		events = publisher
	}

	var generator app.QuestionGenerator
	if cfg.AI.Endpoint != "" {
		generator = collab.NewGenerator(cfg.AI.Endpoint, cfg.AI.APIKey, config.TTLDuration(cfg.AI.Timeout, 30*time.Second))
	}
	var uploader app.MediaUploader
	if cfg.Upload.Endpoint != "" {
		uploader = collab.NewUploader(cfg.Upload.Endpoint, config.TTLDuration(cfg.Upload.Timeout, time.Minute))
	}

	service := app.NewQuizService(ctx, store, quizRepo, events, logger)
	service.Host().WithDefaultTimeLimit(cfg.Quiz.DefaultTimeLimit)
	editor := app.NewQuizEditor(quizStore, quizRepo, generator, uploader, logger)

	api := transport.NewAPI(service, editor, cfg.Server.PublicURL, logger)
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(api, transport.NewWSHandler(service, logger)),
		ReadTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting toastmaster", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	service.Autopilot().Wait()
	if err != nil {
		logger.Error("server stopped", "error", err)
	}
	return err
}

// sampleQuizzes seeds the in-memory quiz store when no database is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"sample": {
			ID:    "sample",
			Title: "Warm-up quiz",
			Questions: []domain.Question{
				{
					ID:       "q1",
					Question: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4", IsCorrect: true},
					},
					PointType: domain.PointStandard,
				},
				{
					ID:       "q2",
					Question: "Which planet is the largest?",
					Options: []domain.Option{
						{ID: "o1", Text: "Mars", Color: "red", Icon: "triangle"},
						{ID: "o2", Text: "Jupiter", IsCorrect: true, Color: "blue", Icon: "diamond"},
						{ID: "o3", Text: "Venus", Color: "yellow", Icon: "circle"},
						{ID: "o4", Text: "Earth", Color: "green", Icon: "square"},
					},
					PointType: domain.PointDouble,
				},
			},
		},
	}
}
