package cache

import (
	"todo-service/config"

	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// InitializeCache builds the user-record cache. CACHE_TYPE=none returns a
// nil cache, which callers treat as disabled.
func InitializeCache(cfg *config.Config) (cache.Cache, error) {
	if cfg.CacheType == "none" {
		logger.Info("Cache disabled")
		return nil, nil
	}

	c, err := cache.New(cache.Config{
		Type:          cfg.CacheType,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Cache initialized", zap.String("type", cfg.CacheType))
	return c, nil
}
