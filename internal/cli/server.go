package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-trainer-service/internal/app"
	"quiz-trainer-service/internal/config"
	"quiz-trainer-service/internal/domain"
	"quiz-trainer-service/internal/infra/memory"
	pgstore "quiz-trainer-service/internal/infra/postgres"
	redisinfra "quiz-trainer-service/internal/infra/redis"
	transport "quiz-trainer-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz trainer server",
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
	log := newLogger()

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

	var games app.GameRepository
	var questions app.QuestionRepository
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()

		games = pgstore.NewStore(db)
		questions = pgstore.NewQuestionLoader(pool)
	} else {
		log.Warn("no postgres configured, serving sample data from memory")
		store := memory.NewStore()
		seedSampleData(store)
		games = store
		questions = store
	}

	if redisClient != nil {
		questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
		questions = redisinfra.NewQuestionCache(redisClient, questions, questionTTL)
	}

	service := app.NewGameService(games, questions)
	handler := transport.NewHandler(service, log)
	wsHandler := transport.NewWSHandler(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/play", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting quiz trainer service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(os.Stdout)
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// seedSampleData loads a minimal course so the demo mode has something to
// quiz on; production data comes from the seed command and the CRUD service.
func seedSampleData(store *memory.Store) {
	now := time.Now()
	store.AddCourse(domain.Course{ID: "course-1", Name: "Demo course", CreatedAt: now, UpdatedAt: now})
	store.AddQuestion(
		domain.Question{
			ID: "q1", CourseID: "course-1", Type: domain.MultipleChoice,
			Content: "What is 2 + 2?", Origin: "2024-spring", Label: "Spring 24",
			CreatedAt: now, UpdatedAt: now,
		},
		domain.QuestionOption{ID: "q1-o1", QuestionID: "q1", Content: "3"},
		domain.QuestionOption{ID: "q1-o2", QuestionID: "q1", Content: "4", Correct: true},
		domain.QuestionOption{ID: "q1-o3", QuestionID: "q1", Content: "5"},
	)
	store.AddQuestion(
		domain.Question{
			ID: "q2", CourseID: "course-1", Type: domain.SentenceFill,
			Content: "The capital of France is {{placeholder}}.", Origin: "2024-spring", Label: "Spring 24",
			CreatedAt: now, UpdatedAt: now,
		},
		domain.QuestionOption{ID: "q2-o1", QuestionID: "q2", Content: "Paris", Correct: true},
	)
	store.AddQuestion(
		domain.Question{
			ID: "q3", CourseID: "course-1", Type: domain.Matrix,
			Content: "Mark the even numbers per row.", Origin: "2024-fall", Label: "Fall 24",
			CreatedAt: now, UpdatedAt: now,
		},
		domain.QuestionOption{ID: "q3-o1", QuestionID: "q3", Content: "2", YContent: "row 1", Correct: true},
		domain.QuestionOption{ID: "q3-o2", QuestionID: "q3", Content: "3", YContent: "row 1"},
		domain.QuestionOption{ID: "q3-o3", QuestionID: "q3", Content: "4", YContent: "row 2", Correct: true},
	)
}
