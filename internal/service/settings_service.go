package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"nexus-crypto-desk/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const settingsKey = "desk:settings"

// SettingsService stores the desk settings in Redis. Missing or corrupt
// stored settings fall back to the configured defaults so a wiped cache
// never breaks the desk.
type SettingsService struct {
	tracer   trace.Tracer
	redis    RedisClient
	defaults domain.Settings
}

func NewSettingsService(tracer trace.Tracer, redisClient RedisClient, defaults domain.Settings) *SettingsService {
	return &SettingsService{tracer: tracer, redis: redisClient, defaults: defaults}
}

func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	_, span := s.tracer.Start(ctx, "settings-service.get")
	defer span.End()

	if s.redis == nil {
		return s.defaults, nil
	}

	data, err := s.redis.Get(ctx, settingsKey).Bytes()
	if err == redis.Nil {
		return s.defaults, nil
	}
	if err != nil {
		return s.defaults, err
	}

	var settings domain.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		log.Printf("corrupt stored settings, using defaults: %v", err)
		return s.defaults, nil
	}
	return settings, nil
}

func (s *SettingsService) Update(ctx context.Context, settings domain.Settings) error {
	_, span := s.tracer.Start(ctx, "settings-service.update")
	defer span.End()

	if err := validateSettings(settings); err != nil {
		return err
	}
	if s.redis == nil {
		return fmt.Errorf("settings store unavailable")
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	// No TTL: settings persist until overwritten.
	return s.redis.Set(ctx, settingsKey, data, 0).Err()
}

func validateSettings(settings domain.Settings) error {
	if settings.TargetPct <= 0 || settings.TargetPct > 100 {
		return fmt.Errorf("target pct must be in (0, 100], got %.2f", settings.TargetPct)
	}
	if settings.StopPct <= 0 || settings.StopPct >= 100 {
		return fmt.Errorf("stop pct must be in (0, 100), got %.2f", settings.StopPct)
	}
	if !domain.IsValidRiskProfile(settings.RiskProfile) {
		return fmt.Errorf("unknown risk profile: %s", settings.RiskProfile)
	}
	if settings.DataSource != domain.SourceBinance && settings.DataSource != domain.SourceCoinGecko {
		return fmt.Errorf("unknown data source: %s", settings.DataSource)
	}
	return nil
}
