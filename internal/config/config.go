/**
 * @description
 * This file handles configuration management for SubWatch.
 * It loads settings from environment variables (and an optional .env file) with viper,
 * providing defaults for the reminder job and the HTTP server.
 */
package config

import (
	"errors"
	"log"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	ServerPort    string `mapstructure:"SERVER_PORT"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RunMigrations bool   `mapstructure:"RUN_MIGRATIONS"`

	SupabaseURL            string `mapstructure:"SUPABASE_URL"`
	SupabaseServiceRoleKey string `mapstructure:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret      string `mapstructure:"SUPABASE_JWT_SECRET"`

	ResendAPIKey  string `mapstructure:"RESEND_API_KEY"`
	ResendBaseURL string `mapstructure:"RESEND_BASE_URL"`

	ReminderFromAddress   string        `mapstructure:"REMINDER_FROM_ADDRESS"`
	ReminderJobSchedule   string        `mapstructure:"REMINDER_JOB_SCHEDULE"`
	ReminderJobTimeout    time.Duration `mapstructure:"REMINDER_JOB_TIMEOUT"`
	ReminderTimezone      string        `mapstructure:"REMINDER_TIMEZONE"`
	ReminderConcurrency   int           `mapstructure:"REMINDER_CONCURRENCY"`
	ReminderTriggerToken  string        `mapstructure:"REMINDER_TRIGGER_TOKEN"`
	ReminderLedgerEnabled bool          `mapstructure:"REMINDER_LEDGER_ENABLED"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	FreeTierLimit int `mapstructure:"FREE_TIER_LIMIT"`
}

// Location returns the time zone reminder dates are computed in.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReminderTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("RUN_MIGRATIONS", false)
	viper.SetDefault("RESEND_BASE_URL", "https://api.resend.com")
	viper.SetDefault("REMINDER_FROM_ADDRESS", "SubWatch <onboarding@resend.dev>")
	viper.SetDefault("REMINDER_JOB_SCHEDULE", "0 9 * * *") // At 09:00 every day.
	viper.SetDefault("REMINDER_JOB_TIMEOUT", "5m")
	viper.SetDefault("REMINDER_TIMEZONE", "UTC")
	viper.SetDefault("REMINDER_CONCURRENCY", 1)
	viper.SetDefault("REMINDER_LEDGER_ENABLED", false)
	viper.SetDefault("REDIS_KEY_PREFIX", "subwatch")
	viper.SetDefault("EVENTS_EXCHANGE", "subwatch.events")
	viper.SetDefault("FREE_TIER_LIMIT", 3)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RUN_MIGRATIONS")
	_ = viper.BindEnv("SUPABASE_URL")
	_ = viper.BindEnv("SUPABASE_SERVICE_ROLE_KEY")
	_ = viper.BindEnv("SUPABASE_JWT_SECRET")
	_ = viper.BindEnv("RESEND_API_KEY")
	_ = viper.BindEnv("RESEND_BASE_URL")
	_ = viper.BindEnv("REMINDER_FROM_ADDRESS")
	_ = viper.BindEnv("REMINDER_JOB_SCHEDULE")
	_ = viper.BindEnv("REMINDER_JOB_TIMEOUT")
	_ = viper.BindEnv("REMINDER_TIMEZONE")
	_ = viper.BindEnv("REMINDER_CONCURRENCY")
	_ = viper.BindEnv("REMINDER_TRIGGER_TOKEN")
	_ = viper.BindEnv("REMINDER_LEDGER_ENABLED")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("FREE_TIER_LIMIT")

	// The .env file is optional; environment values win when both exist.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.SupabaseURL = strings.TrimSuffix(strings.TrimSpace(config.SupabaseURL), "/")
	config.ResendBaseURL = strings.TrimSuffix(strings.TrimSpace(config.ResendBaseURL), "/")
	config.ReminderJobSchedule = strings.TrimSpace(config.ReminderJobSchedule)
	config.ReminderTriggerToken = strings.TrimSpace(config.ReminderTriggerToken)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisKeyPrefix = strings.TrimSuffix(strings.TrimSpace(config.RedisKeyPrefix), ":")
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = "subwatch"
	}
	if config.ReminderConcurrency < 1 {
		config.ReminderConcurrency = 1
	}
	if config.FreeTierLimit < 1 {
		config.FreeTierLimit = 3
	}
	if config.ReminderJobTimeout <= 0 {
		config.ReminderJobTimeout = 5 * time.Minute
	}

	if config.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if config.ReminderLedgerEnabled && config.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required when REMINDER_LEDGER_ENABLED is true")
	}
	if _, err := time.LoadLocation(config.ReminderTimezone); err != nil {
		return nil, errors.New("REMINDER_TIMEZONE is not a valid IANA time zone: " + config.ReminderTimezone)
	}

	return &config, nil
}
