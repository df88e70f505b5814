package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL      string
	RedisURL         string
	TelegramBotToken string
	TelegramChatID   int64

	HTTPPort int
	APIKey   string

	QuotePollSecs  int
	PlanSyncSecs   int
	CandleTailBars int

	OpenAIAPIKey string
	OpenAIModel  string

	DataSource         string
	DefaultTargetPct   float64
	DefaultStopPct     float64
	DefaultRiskProfile string
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		APIKey:           os.Getenv("DESK_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.APIKey == "" {
		log.Println("Warning: DESK_API_KEY not set, mutating endpoints are unauthenticated")
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = n
		}
	}

	cfg.HTTPPort = 8080
	if v := strings.TrimSpace(os.Getenv("HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	cfg.QuotePollSecs = 10
	if v := os.Getenv("QUOTE_POLL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QuotePollSecs = n
		}
	}

	cfg.PlanSyncSecs = 30
	if v := os.Getenv("PLAN_SYNC_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PlanSyncSecs = n
		}
	}

	cfg.CandleTailBars = 60
	if v := os.Getenv("CANDLE_TAIL_BARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 50 {
			cfg.CandleTailBars = n
		}
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, analysis pipeline will be disabled")
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.DataSource = strings.ToLower(strings.TrimSpace(os.Getenv("DATA_SOURCE")))
	if cfg.DataSource != "binance" && cfg.DataSource != "coingecko" {
		if cfg.DataSource != "" {
			log.Printf("Warning: unsupported DATA_SOURCE=%q, defaulting to binance", cfg.DataSource)
		}
		cfg.DataSource = "binance"
	}

	cfg.DefaultTargetPct = 5
	if v := strings.TrimSpace(os.Getenv("DEFAULT_TARGET_PCT")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.DefaultTargetPct = n
		}
	}

	cfg.DefaultStopPct = 2
	if v := strings.TrimSpace(os.Getenv("DEFAULT_STOP_PCT")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 && n < 100 {
			cfg.DefaultStopPct = n
		}
	}

	cfg.DefaultRiskProfile = strings.ToLower(strings.TrimSpace(os.Getenv("DEFAULT_RISK_PROFILE")))
	switch cfg.DefaultRiskProfile {
	case "conservative", "balanced", "aggressive":
	default:
		cfg.DefaultRiskProfile = "balanced"
	}

	return cfg
}
