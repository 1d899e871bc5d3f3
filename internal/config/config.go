package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresConn  string
	ServerAddress string
	LogLevel      string
	LogFormat     string

	// Клиентская часть панели
	BackendURL string
	Username   string
	CSRFToken  string
	Timeout    time.Duration
	Location   *time.Location
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	// .env необязателен, переменные окружения имеют приоритет
	_ = godotenv.Load()

	cfg := &Config{
		PostgresConn:  os.Getenv("POSTGRES_CONN"),
		ServerAddress: getenv("SERVER_ADDRESS", "0.0.0.0:8080"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFormat:     getenv("LOG_FORMAT", "console"),
		BackendURL:    getenv("EMALL_BACKEND_URL", "http://localhost:8080"),
		Username:      os.Getenv("EMALL_USERNAME"),
		CSRFToken:     os.Getenv("EMALL_CSRF_TOKEN"),
	}

	timeout, err := time.ParseDuration(getenv("EMALL_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid EMALL_TIMEOUT: %w", err)
	}
	cfg.Timeout = timeout

	tz := getenv("EMALL_TIMEZONE", "Asia/Shanghai")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid EMALL_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	return cfg, nil
}

// RequireDB проверяет настройки, без которых сервер не стартует.
func (c *Config) RequireDB() error {
	if c.PostgresConn == "" {
		return fmt.Errorf("POSTGRES_CONN env variable is not set")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
