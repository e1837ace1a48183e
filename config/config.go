package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings. Values come from an optional YAML file
// (FISHLOG_CONFIG) overridden by environment variables.
type Config struct {
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`

	DBPath   string `yaml:"db_path"`
	Timezone string `yaml:"timezone"`
	LogDir   string `yaml:"log_dir"`

	OpenMeteoAPIEndpoint  string `yaml:"open_meteo_api_endpoint"`
	WeatherTimeoutSeconds int    `yaml:"weather_timeout_seconds"`

	BackupDir  string `yaml:"backup_dir"`
	BackupCron string `yaml:"backup_cron"`
	BackupKeep int    `yaml:"backup_keep"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DBPath:                "fishing_logbook.db",
		Timezone:              "UTC",
		OpenMeteoAPIEndpoint:  "https://api.open-meteo.com/v1/forecast",
		WeatherTimeoutSeconds: 10,
		BackupDir:             "backups",
		BackupCron:            "0 3 * * *",
		BackupKeep:            7,
	}
}

// Load builds the configuration from defaults, the YAML file and the environment.
func Load() (Config, error) {
	cfg := Defaults()

	if path := getEnv("FISHLOG_CONFIG", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.TelegramBotToken = getEnv("TG_BOT_TOKEN", cfg.TelegramBotToken)
	cfg.TelegramChatID = getEnv("CHAT_ID", cfg.TelegramChatID)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.Timezone = getEnv("TZ_NAME", cfg.Timezone)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.OpenMeteoAPIEndpoint = getEnv("API_ENDPOINT", cfg.OpenMeteoAPIEndpoint)
	cfg.WeatherTimeoutSeconds = toInt(getEnv("WEATHER_TIMEOUT", ""), cfg.WeatherTimeoutSeconds)
	cfg.BackupDir = getEnv("BACKUP_DIR", cfg.BackupDir)
	cfg.BackupCron = getEnv("BACKUP_CRON", cfg.BackupCron)
	cfg.BackupKeep = toInt(getEnv("BACKUP_KEEP", ""), cfg.BackupKeep)

	return cfg, nil
}

// WeatherTimeout returns the weather request timeout.
func (c Config) WeatherTimeout() time.Duration {
	return time.Duration(c.WeatherTimeoutSeconds) * time.Second
}

// Location returns the time zone used to render timestamps, UTC if unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("WARN: unknown time zone %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// toInt converts a string to int, returning fallback when it is not a number
func toInt(s string, fallback int) int {
	if out, err := strconv.Atoi(s); err == nil {
		return out
	}
	return fallback
}
