package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the application settings.
type Config struct {
	ListenAddr   string // HTTP listen address
	DatabasePath string // SQLite file path
	ReminderCron string // schedule for the due-date reminder scan
}

// Load reads configuration from a .env file and the environment.
func Load(logger *logrus.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment and defaults")
	}

	return &Config{
		ListenAddr:   getEnv("LISTEN_ADDR", ":8080"),
		DatabasePath: getEnv("DATABASE_PATH", "cicilan.db"),
		ReminderCron: getEnv("REMINDER_CRON", "0 */6 * * *"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
