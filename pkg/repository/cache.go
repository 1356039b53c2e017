package repository

import (
	"context"
	"encoding/json"
	"time"
)

// System settings change rarely but are read by every workflow run, so they
// are cached in Redis with a short TTL. The cache is ephemeral; a miss or a
// Redis outage falls back to Postgres.
const (
	systemConfigCacheKey = "ingest:system_settings:global"
	systemConfigCacheTTL = 5 * time.Minute
)

// getCachedSystemConfig returns nil without error on a cache miss or when no
// Redis client is configured.
func (r *repository) getCachedSystemConfig(ctx context.Context) (*SystemConfig, error) {
	if r.redisClient == nil {
		return nil, nil
	}

	data, err := r.redisClient.Get(ctx, systemConfigCacheKey).Bytes()
	if err != nil {
		return nil, err
	}

	var cfg SystemConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setCachedSystemConfig is best effort. Cache write failures are ignored;
// the next read falls through to Postgres again.
func (r *repository) setCachedSystemConfig(ctx context.Context, cfg *SystemConfig) {
	if r.redisClient == nil || cfg == nil {
		return
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	_ = r.redisClient.Set(ctx, systemConfigCacheKey, data, systemConfigCacheTTL).Err()
}

func (r *repository) invalidateCachedSystemConfig(ctx context.Context) {
	if r.redisClient == nil {
		return
	}
	_ = r.redisClient.Del(ctx, systemConfigCacheKey).Err()
}
