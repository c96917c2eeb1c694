package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"live-test-service/internal/app"
	"live-test-service/internal/config"
	"live-test-service/internal/domain"
	"live-test-service/internal/infra/memory"
	pgloader "live-test-service/internal/infra/postgres"
	redisinfra "live-test-service/internal/infra/redis"
	transport "live-test-service/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the test session server",
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
	sessionTTL := config.Duration(cfg.Redis.TTL, 24*time.Hour)

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

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var store app.SessionStore
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		store = memory.NewSessionStore()
	}

	grace := config.Duration(cfg.Session.Grace, time.Second)
	service := app.NewService(store, quizRepo, app.WithGrace(grace))
	defer service.Close()

	retention := config.Duration(cfg.Session.Retention, 24*time.Hour)
	sweepInterval := config.Duration(cfg.Session.SweepInterval, 5*time.Minute)
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go app.NewSweeper(service, sweepInterval, retention).Run(sweepCtx)

	wsHandler := transport.NewWSHandler(service)
	apiHandler := transport.NewAPIHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting test service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds a minimal question set for running without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Mode:  domain.ModeOnline,
			Questions: []domain.Question{
				{
					Content: "What is 2 + 2?",
					Options: []domain.Option{
						{Letter: "A", Text: "3"},
						{Letter: "B", Text: "4"},
						{Letter: "C", Text: "5"},
					},
					CorrectOption: "B",
					TimeLimit:     30,
				},
			},
		},
	}
}
