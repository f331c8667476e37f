package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the process configuration, read from the environment (and a
// .env file loaded beforehand).
type Settings struct {
	Port string `mapstructure:"PORT"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	MySQLURL    string `mapstructure:"MYSQL_URL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPass      string `mapstructure:"DB_PASS"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBName      string `mapstructure:"DB_NAME"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	DBSeed      bool   `mapstructure:"DB_SEED"`
	DBLogLevel  string `mapstructure:"DB_LOG_LEVEL"`

	JWTSecret   string `mapstructure:"JWT_SECRET"`
	CorsOrigins string `mapstructure:"CORS_ORIGINS"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`
	EventsQueue string `mapstructure:"EVENTS_QUEUE"`

	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
	HotelTimezone string        `mapstructure:"HOTEL_TIMEZONE"`

	CancelMaxAttempts int           `mapstructure:"CANCEL_MAX_ATTEMPTS"`
	CancelWindow      time.Duration `mapstructure:"CANCEL_WINDOW"`
	CancelCutoff      time.Duration `mapstructure:"CANCEL_CUTOFF"`

	ThrottleRPS   float64 `mapstructure:"THROTTLE_RPS"`
	ThrottleBurst int     `mapstructure:"THROTTLE_BURST"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`
}

var defaults = map[string]any{
	"PORT":                "8080",
	"DB_DRIVER":           "mysql",
	"MYSQL_URL":           "",
	"DATABASE_URL":        "",
	"DB_USER":             "root",
	"DB_PASS":             "",
	"DB_HOST":             "127.0.0.1",
	"DB_PORT":             "3306",
	"DB_NAME":             "hotel_db",
	"SQLITE_PATH":         "hotel.db",
	"DB_SEED":             true,
	"DB_LOG_LEVEL":        "warn",
	"JWT_SECRET":          "",
	"CORS_ORIGINS":        "",
	"REDIS_ADDR":          "",
	"REDIS_PASSWORD":      "",
	"REDIS_DB":            0,
	"RABBITMQ_URL":        "",
	"EVENTS_QUEUE":        "reservation.events",
	"SWEEP_INTERVAL":      5 * time.Minute,
	"HOTEL_TIMEZONE":      "UTC",
	"CANCEL_MAX_ATTEMPTS": 3,
	"CANCEL_WINDOW":       time.Hour,
	"CANCEL_CUTOFF":       time.Hour,
	"THROTTLE_RPS":        20.0,
	"THROTTLE_BURST":      40,
	"LOG_LEVEL":           "info",
	"LOG_PRETTY":          false,
}

// LoadSettings reads every key from the environment, falling back to defaults.
func LoadSettings() (*Settings, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	switch strings.ToLower(s.DBDriver) {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be mysql or sqlite, got %q", s.DBDriver)
	}
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the hotel time zone.
func (s *Settings) Location() (*time.Location, error) {
	name := strings.TrimSpace(s.HotelTimezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("HOTEL_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

// CorsOriginList splits CORS_ORIGINS. Empty means any origin.
func (s *Settings) CorsOriginList() []string {
	raw := strings.TrimSpace(s.CorsOrigins)
	if raw == "" {
		return []string{"*"}
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
