package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeclash/internal/api"
	"codeclash/internal/app/judge"
	"codeclash/internal/app/service"
	"codeclash/internal/app/worker"
	"codeclash/internal/common/security"
	"codeclash/internal/domain/repository"
	"codeclash/internal/domain/repository/memstore"
	"codeclash/internal/platform/config"
	"codeclash/internal/platform/database"
	"codeclash/internal/platform/logger"
	"codeclash/internal/platform/queue"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type repositories struct {
	users       repository.UserRepository
	questions   repository.QuestionRepository
	contests    repository.ContestRepository
	submissions repository.SubmissionRepository
}

func main() {
	// 1. Load Configuration
	envLoaded := config.Load()
	if err := logger.Init(logger.Config{Level: config.AppConfig.LogLevel, Format: config.AppConfig.LogFormat}); err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "configuration loaded", zap.Bool("env_file", envLoaded), zap.String("storage", config.AppConfig.StorageDriver))

	// 2. Initialize JWT
	security.InitJWT(config.AppConfig.JWTKey)

	// 3. Initialize Storage
	repos := openRepositories(ctx)
	defer database.Close()

	// 4. Initialize Redis
	queue.ConnectRedis()
	defer queue.CloseRedis()
	judgeQueue := queue.NewJudgeQueue(queue.RDB, config.AppConfig.JudgeQueueName)
	locker := queue.NewLocker(queue.RDB, config.AppConfig.JudgeLockPrefix, config.AppConfig.JudgeLockTTL)

	// 5. Initialize Services
	judgeClient := judge.NewClient(judge.Config{
		BaseURL:         config.AppConfig.JudgeAPIURL,
		APIKey:          config.AppConfig.JudgeAPIKey,
		APIHost:         config.AppConfig.JudgeAPIHost,
		AuthToken:       config.AppConfig.JudgeAuthToken,
		Mode:            config.AppConfig.JudgeMode,
		RequestTimeout:  config.AppConfig.JudgeRequestTimeout,
		PollInterval:    config.AppConfig.JudgePollInterval,
		MaxPollAttempts: config.AppConfig.JudgeMaxPollAttempt,
		PollTimeout:     config.AppConfig.JudgePollTimeout,
	}, nil)

	verdictService := service.NewVerdictService(repos.submissions, repos.questions, judgeClient, config.AppConfig.EvaluationTimeout)
	submissionService := service.NewSubmissionService(repos.submissions, repos.questions, repos.contests, judgeQueue)
	contestService := service.NewContestService(repos.contests, repos.questions, config.AppConfig.DefaultNumQuestions)
	leaderboardService := service.NewLeaderboardService(repos.contests, repos.submissions, repos.users, repos.questions)

	// 6. Initialize Router & HTTP Server
	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      api.NewRouter(submissionService, contestService, leaderboardService),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 7. Run the judge workers and the server until a signal arrives
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	judgeWorker := worker.NewJudgeWorker(judgeQueue, locker, verdictService, worker.Config{Workers: config.AppConfig.JudgeWorkers})

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return judgeWorker.Start(gctx)
	})
	g.Go(func() error {
		logger.Info(gctx, "server starting", zap.String("port", config.AppConfig.APIPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "server stopped with error", zap.Error(err))
		return
	}
	logger.Info(ctx, "server and workers stopped gracefully")
}

func openRepositories(ctx context.Context) repositories {
	switch config.AppConfig.StorageDriver {
	case config.StorageDriverMemory:
		store := memstore.New()
		logger.Warn(ctx, "using in-memory storage, data is lost on restart")
		return repositories{
			users:       store.Users(),
			questions:   store.Questions(),
			contests:    store.Contests(),
			submissions: store.Submissions(),
		}
	case config.StorageDriverPostgres:
		database.Connect()
		if config.AppConfig.DBAutoMigrate {
			if err := database.Migrate(ctx, database.DB); err != nil {
				logger.Fatal(ctx, "schema migration failed", zap.Error(err))
			}
			logger.Info(ctx, "schema applied")
		}
		return repositories{
			users:       repository.NewPgUserRepository(database.DB),
			questions:   repository.NewPgQuestionRepository(database.DB),
			contests:    repository.NewPgContestRepository(database.DB),
			submissions: repository.NewPgSubmissionRepository(database.DB),
		}
	default:
		logger.Fatal(ctx, "unknown storage driver", zap.String("driver", config.AppConfig.StorageDriver))
		return repositories{}
	}
}
