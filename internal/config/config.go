package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	AppEnv  string
	Debug   bool
	Version string

	BotToken        string
	TargetChannelID int64
	AllowedSenders  []int64
	DBPath          string

	// SendInterval is the fixed delay between publish ticks.
	SendInterval time.Duration
	// GroupThreshold switches photo delivery to albums when the unsent
	// backlog exceeds it. Zero disables batching.
	GroupThreshold int

	// WithAPI enables the HTTP upload endpoint and the staging uploader.
	WithAPI      bool
	APIAddr      string
	UploadChatID int64

	SentryDSN string
}

// LoadConfig loads configuration from environment variables. It attempts to
// load a .env file if present but prioritizes actual environment variables
// set in the system (e.g., by Docker).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	debug, _ := strconv.ParseBool(getEnv("DEBUG", "false"))

	channelID, err := parseInt64Env("TARGET_CHANNEL_ID")
	if err != nil {
		return nil, err
	}

	allowedSenders, err := parseIDList(getEnv("ALLOWED_SENDERS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid ALLOWED_SENDERS: %w", err)
	}

	intervalStr := getEnv("SEND_INTERVAL", "")
	if intervalStr == "" {
		return nil, fmt.Errorf("SEND_INTERVAL is required")
	}
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SEND_INTERVAL: %w", err)
	}

	groupThreshold := 0
	if s := getEnv("GROUP_THRESHOLD", ""); s != "" {
		groupThreshold, err = strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid GROUP_THRESHOLD: %w", err)
		}
	}

	withAPI, _ := strconv.ParseBool(getEnv("WITH_API", "false"))

	var uploadChatID int64
	if s := getEnv("UPLOAD_CHAT_ID", ""); s != "" {
		uploadChatID, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid UPLOAD_CHAT_ID: %w", err)
		}
	}

	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Debug:           debug,
		Version:         getEnv("VERSION", "dev"),
		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		TargetChannelID: channelID,
		AllowedSenders:  allowedSenders,
		DBPath:          getEnv("DB_PATH", ""),
		SendInterval:    interval,
		GroupThreshold:  groupThreshold,
		WithAPI:         withAPI,
		APIAddr:         getEnv("API_ADDR", ""),
		UploadChatID:    uploadChatID,
		SentryDSN:       getEnv("SENTRY_DSN", ""),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("DB_PATH is required")
	}
	if len(cfg.AllowedSenders) == 0 {
		return nil, fmt.Errorf("ALLOWED_SENDERS is required")
	}
	if cfg.SendInterval <= 0 {
		return nil, fmt.Errorf("SEND_INTERVAL must be positive")
	}
	if cfg.WithAPI {
		if cfg.APIAddr == "" {
			return nil, fmt.Errorf("API_ADDR is required when WITH_API is set")
		}
		if cfg.UploadChatID == 0 {
			return nil, fmt.Errorf("UPLOAD_CHAT_ID is required when WITH_API is set")
		}
	}
	if cfg.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}

	return cfg, nil
}

// parseIDList parses a comma-separated list of chat ids.
func parseIDList(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseInt64Env(key string) (int64, error) {
	s := getEnv(key, "")
	if s == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
