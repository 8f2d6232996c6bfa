package config

import (
	"fmt"
	"strings" // For LogLevel normalization
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string `env:"TELEGRAM_TOKEN,required"`
	DatabaseURL     string `env:"DATABASE_URL,required"`
	OwnerTelegramID int64  `env:"OWNER_TELEGRAM_ID,required"` // The only user the bot answers and nudges
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	Environment     string `env:"ENVIRONMENT" envDefault:"development"`
	QueuePath       string `env:"QUEUE_PATH" envDefault:"./data/queue.db"` // SQLite file holding pending reminders
	HTTPAddr        string `env:"HTTP_ADDR" envDefault:":8080"`
	Timezone        string `env:"TIMEZONE" envDefault:"UTC"`

	CronSpecFullRefresh string `env:"CRON_SPEC_FULL_REFRESH" envDefault:"0 */6 * * *"` // Authoritative reallocation
	CronSpecDelivery    string `env:"CRON_SPEC_DELIVERY" envDefault:"* * * * *"`       // Fires due reminders

	ReminderCapacity   int           `env:"REMINDER_CAPACITY" envDefault:"64"`
	ReminderHorizon    time.Duration `env:"REMINDER_HORIZON" envDefault:"48h"`
	ReminderHour       int           `env:"REMINDER_HOUR" envDefault:"10"`
	DeliveryRatePerSec int           `env:"DELIVERY_RATE_PER_SEC" envDefault:"1"`

	Location *time.Location `env:"-"`
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *AppConfig) normalize() error {
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Environment = strings.ToLower(cfg.Environment)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.ReminderCapacity < 0 {
		return fmt.Errorf("REMINDER_CAPACITY must not be negative, got %d", cfg.ReminderCapacity)
	}
	if cfg.ReminderHorizon <= 0 {
		return fmt.Errorf("REMINDER_HORIZON must be positive, got %s", cfg.ReminderHorizon)
	}
	if cfg.ReminderHour < 0 || cfg.ReminderHour > 23 {
		return fmt.Errorf("REMINDER_HOUR must be between 0 and 23, got %d", cfg.ReminderHour)
	}
	if cfg.DeliveryRatePerSec <= 0 {
		cfg.DeliveryRatePerSec = 1
	}
	return nil
}
