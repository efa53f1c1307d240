package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"codeclash/internal/platform/config"
	"codeclash/internal/platform/logger"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

var DB *sql.DB

func Connect() {
	ctx := context.Background()
	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		logger.Fatal(ctx, "error opening database", zap.Error(err))
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = DB.PingContext(pingCtx); err != nil {
		logger.Fatal(ctx, "error connecting to database",
			zap.String("host", config.AppConfig.DBHost), zap.String("db", config.AppConfig.DBName), zap.Error(err))
	}

	logger.Info(ctx, "connected to postgres", zap.String("host", config.AppConfig.DBHost), zap.String("db", config.AppConfig.DBName))
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func Close() {
	if DB != nil {
		if err := DB.Close(); err != nil {
			logger.Warn(context.Background(), "error closing database", zap.Error(err))
			return
		}
		logger.Info(context.Background(), "database connection closed")
	}
}
