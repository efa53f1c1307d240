package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"codeclash/internal/app/judge"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	APIPort string
	JWTKey  []byte

	StorageDriver string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSslMode     string
	DBConnStr     string
	DBAutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JudgeAPIURL         string
	JudgeAPIKey         string
	JudgeAPIHost        string
	JudgeAuthToken      string
	JudgeMode           string
	JudgeRequestTimeout time.Duration
	JudgePollInterval   time.Duration
	JudgeMaxPollAttempt int
	JudgePollTimeout    time.Duration

	JudgeQueueName  string
	JudgeLockPrefix string
	JudgeLockTTL    time.Duration
	JudgeWorkers    int

	EvaluationTimeout   time.Duration
	DefaultNumQuestions int

	LogLevel  string
	LogFormat string
}

var AppConfig *Config

// Load reads .env (if present) and the process environment into AppConfig.
// It returns true when a .env file was found.
func Load() bool {
	envFileLoaded := godotenv.Load() == nil

	AppConfig = &Config{
		APIPort: getEnv("API_PORT", "8080"),
		JWTKey:  []byte(getEnv("JWT_SECRET", "defaultsecret")),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "codeclash"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),
		DBAutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JudgeAPIURL:         strings.TrimRight(getEnv("JUDGE_API_URL", "https://judge0-ce.p.rapidapi.com"), "/"),
		JudgeAPIKey:         getEnv("JUDGE_API_KEY", ""),
		JudgeAPIHost:        getEnv("JUDGE_API_HOST", "judge0-ce.p.rapidapi.com"),
		JudgeAuthToken:      getEnv("JUDGE_AUTH_TOKEN", ""),
		JudgeMode:           strings.ToLower(getEnv("JUDGE_MODE", judge.ModeSync)),
		JudgeRequestTimeout: time.Duration(getEnvAsInt("JUDGE_REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		JudgePollInterval:   time.Duration(getEnvAsInt("JUDGE_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		JudgeMaxPollAttempt: getEnvAsInt("JUDGE_MAX_POLL_ATTEMPTS", 15),
		JudgePollTimeout:    time.Duration(getEnvAsInt("JUDGE_POLL_TIMEOUT_SECONDS", 30)) * time.Second,

		JudgeQueueName:  getEnv("JUDGE_QUEUE_NAME", "judge_submissions_queue"),
		JudgeLockPrefix: getEnv("JUDGE_LOCK_PREFIX", "judge_submission_lock:"),
		JudgeLockTTL:    time.Duration(getEnvAsInt("JUDGE_LOCK_TTL_SECONDS", 300)) * time.Second,
		JudgeWorkers:    getEnvAsInt("JUDGE_WORKERS", 4),

		EvaluationTimeout:   time.Duration(getEnvAsInt("EVALUATION_TIMEOUT_SECONDS", 240)) * time.Second,
		DefaultNumQuestions: getEnvAsInt("DEFAULT_NUM_QUESTIONS", 5),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode

	return envFileLoaded
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
