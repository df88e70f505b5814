package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("QUOTE_POLL_SECS", "")
	t.Setenv("DATA_SOURCE", "")
	t.Setenv("DEFAULT_TARGET_PCT", "")
	t.Setenv("DEFAULT_STOP_PCT", "")

	cfg := Load()
	if cfg.RedisURL != "localhost:6379" {
		t.Fatalf("expected default redis url, got %s", cfg.RedisURL)
	}
	if cfg.QuotePollSecs != 10 {
		t.Fatalf("expected default poll secs 10, got %d", cfg.QuotePollSecs)
	}
	if cfg.DataSource != "binance" {
		t.Fatalf("expected default data source binance, got %s", cfg.DataSource)
	}
	if cfg.DefaultTargetPct != 5 || cfg.DefaultStopPct != 2 {
		t.Fatalf("unexpected target/stop defaults: %f/%f", cfg.DefaultTargetPct, cfg.DefaultStopPct)
	}
	if cfg.DefaultRiskProfile != "balanced" {
		t.Fatalf("expected balanced risk profile, got %s", cfg.DefaultRiskProfile)
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis:6379")
	t.Setenv("QUOTE_POLL_SECS", "30")
	t.Setenv("DATA_SOURCE", "COINGECKO")
	t.Setenv("DEFAULT_TARGET_PCT", "7.5")
	t.Setenv("DEFAULT_STOP_PCT", "3")
	t.Setenv("DEFAULT_RISK_PROFILE", "aggressive")

	cfg := Load()
	if cfg.TelegramBotToken != "token" || cfg.DatabaseURL != "postgres://example" || cfg.RedisURL != "redis:6379" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.QuotePollSecs != 30 {
		t.Fatalf("expected poll secs 30, got %d", cfg.QuotePollSecs)
	}
	if cfg.DataSource != "coingecko" {
		t.Fatalf("expected coingecko source, got %s", cfg.DataSource)
	}
	if cfg.DefaultTargetPct != 7.5 || cfg.DefaultStopPct != 3 {
		t.Fatalf("unexpected target/stop: %f/%f", cfg.DefaultTargetPct, cfg.DefaultStopPct)
	}
	if cfg.DefaultRiskProfile != "aggressive" {
		t.Fatalf("expected aggressive risk profile, got %s", cfg.DefaultRiskProfile)
	}

	t.Setenv("QUOTE_POLL_SECS", "bad")
	t.Setenv("DATA_SOURCE", "bloomberg")
	cfg = Load()
	if cfg.QuotePollSecs != 10 {
		t.Fatalf("invalid poll secs should fall back to default, got %d", cfg.QuotePollSecs)
	}
	if cfg.DataSource != "binance" {
		t.Fatalf("invalid data source should fall back to binance, got %s", cfg.DataSource)
	}
}
