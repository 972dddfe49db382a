package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration fields for the application.
type Config struct {
	BotToken         string
	BotAPIBaseURL    string
	AdminChatID      int64
	WebhookPath      string
	WebhookSecret    string
	Port             string

	ModerationAPIBaseURL string
	ModerationAPIKeys    []string

	RedisURL    string
	AuditDBPath string
	RabbitURL   string
	RabbitQueue string

	RateLimitMax           int
	RateLimitWindowSeconds int
	TrustThreshold         int
	ModCacheMinLen         int
	ModCacheTTLHours       int
	AutoBlock              bool
	DefaultLang            string

	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present; environment variables take
// precedence.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	cfg := &Config{
		BotToken:             os.Getenv("BOT_TOKEN"),
		BotAPIBaseURL:        os.Getenv("BOT_API_BASE_URL"),
		WebhookPath:          os.Getenv("WEBHOOK_PATH"),
		WebhookSecret:        os.Getenv("WEBHOOK_SECRET"),
		Port:                 os.Getenv("PORT"),
		ModerationAPIBaseURL: os.Getenv("MODERATION_API_BASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		AuditDBPath:          os.Getenv("AUDIT_DB"),
		RabbitURL:            os.Getenv("RABBITMQ_URL"),
		RabbitQueue:          os.Getenv("RABBITMQ_QUEUE"),
		DefaultLang:          os.Getenv("DEFAULT_LANG"),
		LogLevel:             os.Getenv("LOG_LEVEL"),
		LogFormat:            os.Getenv("LOG_FORMAT"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN cannot be empty")
	}

	adminIDStr := os.Getenv("ADMIN_CHAT_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_CHAT_ID cannot be empty")
	}
	adminID, err := strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_CHAT_ID must be numeric: %w", err)
	}
	cfg.AdminChatID = adminID

	for _, k := range strings.Split(os.Getenv("MODERATION_API_KEYS"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			cfg.ModerationAPIKeys = append(cfg.ModerationAPIKeys, k)
		}
	}

	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/webhook"
		log.Info().Str("path", cfg.WebhookPath).Msg("WEBHOOK_PATH not set, using default")
	}
	if cfg.RabbitQueue == "" {
		cfg.RabbitQueue = "relay_events"
	}
	if cfg.DefaultLang == "" {
		cfg.DefaultLang = "en"
	}

	cfg.RateLimitMax = envInt("RATE_LIMIT_MAX", 10)
	cfg.RateLimitWindowSeconds = envInt("RATE_LIMIT_WINDOW_SECONDS", 60)
	cfg.TrustThreshold = envInt("TRUST_THRESHOLD", 5)
	cfg.ModCacheMinLen = envInt("MOD_CACHE_MIN_LEN", 4)
	cfg.ModCacheTTLHours = envInt("MOD_CACHE_TTL_HOURS", 24)
	cfg.AutoBlock = os.Getenv("AUTO_BLOCK") != "false"

	log.Info().
		Int64("adminChatID", cfg.AdminChatID).
		Int("moderationKeys", len(cfg.ModerationAPIKeys)).
		Bool("autoBlock", cfg.AutoBlock).
		Msg("Configuration loaded")
	return cfg, nil
}

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("var", name).Str("value", raw).Int("default", def).Msg("Invalid integer env var, using default")
		return def
	}
	return v
}
