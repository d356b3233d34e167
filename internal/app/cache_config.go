package app

import (
	"strings"
	"time"

	"github.com/charlesng35/erprbac/internal/cache"
)

// defaultGrantCacheTTL bounds how long a grant set may be served after a missed
// invalidation.
const defaultGrantCacheTTL = 10 * time.Minute

// GrantCacheEnabled reports whether per-role grant sets should be cached in Redis.
func (c CacheConfig) GrantCacheEnabled() bool {
	return c.Redis.Enabled && strings.TrimSpace(c.Redis.Address) != ""
}

// GrantCacheTTL returns the lifetime of a cached grant set.
func (c CacheConfig) GrantCacheTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return defaultGrantCacheTTL
	}
	return c.Redis.TTL
}

// RedisClientConfig returns the connection settings of the grant cache's Redis backend.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}
