package cmd

import (
	"fmt"
	"os"

	"codeclash/internal/app/service"
	"codeclash/internal/domain/repository"
	"codeclash/internal/platform/config"
	"codeclash/internal/platform/database"
	"codeclash/internal/platform/logger"
	"codeclash/internal/platform/queue"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "judgectl",
	Short: "Operator tooling for the judge pipeline",
	Long: `judgectl talks to the same postgres and redis as the API server.

Examples:
  judgectl requeue
  judgectl backfill-contest --dry-run`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.Load()
		return logger.Init(logger.Config{Level: config.AppConfig.LogLevel, Format: config.AppConfig.LogFormat})
	},
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newRequeueCmd(), newBackfillCmd())
}

// maintenance connects to postgres and redis. The returned func closes both.
func maintenance() (*service.MaintenanceService, func()) {
	database.Connect()
	queue.ConnectRedis()
	judgeQueue := queue.NewJudgeQueue(queue.RDB, config.AppConfig.JudgeQueueName)

	svc := service.NewMaintenanceService(
		repository.NewPgSubmissionRepository(database.DB),
		repository.NewPgContestRepository(database.DB),
		judgeQueue,
	)
	return svc, func() {
		queue.CloseRedis()
		database.Close()
		_ = logger.Sync()
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
