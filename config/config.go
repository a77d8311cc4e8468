package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/soffa-projects/matchqueue/log"
)

type Config struct {
	Env      string `envconfig:"ENV" default:"dev"`
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON  bool   `envconfig:"LOG_JSON" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" default:"sqlite://file:matchqueue?mode=memory&cache=shared"`
	RedisURL    string `envconfig:"REDIS_URL"`
	EmitChannel string `envconfig:"EMIT_CHANNEL" default:"matchqueue:emit"`
	// PresenceKey prefixes the per-instance sets of connected users.
	PresenceKey string        `envconfig:"PRESENCE_KEY" default:"matchqueue:presence"`
	PresenceTTL time.Duration `envconfig:"PRESENCE_TTL" default:"30s"`

	InternalJobSecret string   `envconfig:"INTERNAL_JOB_TOKEN_SECRET" required:"true"`
	JwtSecret         string   `envconfig:"JWT_SECRET" required:"true"`
	AllowOrigins      []string `envconfig:"ALLOW_ORIGINS"`

	QueueBatchSize    int           `envconfig:"QUEUE_BATCH_SIZE" default:"10"`
	QueueMaxAttempts  int           `envconfig:"QUEUE_MAX_ATTEMPTS" default:"3"`
	QueueLeaseTimeout time.Duration `envconfig:"QUEUE_LEASE_TIMEOUT" default:"5m"`
	QueueClaimTimeout time.Duration `envconfig:"QUEUE_CLAIM_TIMEOUT" default:"10s"`
	FetchTimeout      time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`

	// LevelServiceURL is the base url of the service owning level
	// statistics. Without it, index and play attempt jobs have no handler.
	LevelServiceURL string `envconfig:"LEVEL_SERVICE_URL"`

	WorkerSchedule string        `envconfig:"WORKER_SCHEDULE"`
	WorkerInterval time.Duration `envconfig:"WORKER_INTERVAL" default:"0"`

	MatchTimerSkew time.Duration `envconfig:"MATCH_TIMER_SKEW" default:"1ms"`
	UserCacheTTL   time.Duration `envconfig:"USER_CACHE_TTL" default:"30s"`
}

func IsProduction(env string) bool {
	return env == "production" || env == "prod"
}

// Load reads .env outside production, then fills cfg from the environment.
func Load(cfg any) error {
	if !IsProduction(os.Getenv("ENV")) {
		if err := godotenv.Load(".env"); err != nil {
			log.Debug("unable to load .env file: %v", err)
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.InternalJobSecret == "" || c.JwtSecret == "" {
		return fmt.Errorf("INTERNAL_JOB_TOKEN_SECRET and JWT_SECRET are required")
	}
	if c.WorkerSchedule != "" && c.RedisURL == "" {
		return fmt.Errorf("WORKER_SCHEDULE requires REDIS_URL")
	}
	if c.QueueMaxAttempts < 1 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be at least 1")
	}
	if c.QueueBatchSize < 1 {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be at least 1")
	}
	return nil
}
