package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL        string        `env:"DATABASE_URL,required"`
	JWTSecret          string        `env:"JWT_SECRET,required"`
	JWTExpiry          time.Duration `env:"JWT_EXPIRY" envDefault:"1h"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	Port               int           `env:"PORT" envDefault:"8080"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv             string        `env:"APP_ENV" envDefault:"production"`
	MigrationsDir      string        `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	RabbitMQURL    string `env:"RABBITMQ_URL"`
	EventsExchange string `env:"EVENTS_EXCHANGE" envDefault:"ledger_events"`

	SnowflakeNode      int64 `env:"SNOWFLAKE_NODE" envDefault:"1"`
	HistoryMaxPageSize int   `env:"HISTORY_MAX_PAGE_SIZE" envDefault:"100"`

	ReconcileSchedule string `env:"RECONCILE_SCHEDULE" envDefault:"@every 1h"`
	CleanupSchedule   string `env:"CLEANUP_SCHEDULE" envDefault:"@every 15m"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config.Load: .env: %w", err)
		}
		slog.Debug("no .env file found, using process environment")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
