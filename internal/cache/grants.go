package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/erprbac/pkg/logger"
	"github.com/charlesng35/erprbac/pkg/metrics"
)

const (
	grantGenerationPrefix = "rbac:grants:gen:"
	grantSetPrefix        = "rbac:grants:set:"
	defaultGrantTTL       = 5 * time.Minute
)

// GrantLoader reads a role's granted permission ids from the source of truth.
type GrantLoader func(ctx context.Context) ([]string, error)

// GrantCache caches per-role grant sets. Entries are keyed by a per-role generation
// counter; bumping the generation makes every earlier entry unreachable.
type GrantCache struct {
	store Store
	ttl   time.Duration
}

// NewGrantCache constructs a grant cache. A nil store yields a pass-through cache.
func NewGrantCache(store Store, ttl time.Duration) *GrantCache {
	if ttl <= 0 {
		ttl = defaultGrantTTL
	}
	return &GrantCache{store: store, ttl: ttl}
}

// Enabled reports whether a backing store is configured.
func (c *GrantCache) Enabled() bool {
	return c != nil && c.store != nil
}

// Load returns the cached grant set of roleID, populating it through loader on a miss.
// Store failures fall back to the loader.
func (c *GrantCache) Load(ctx context.Context, roleID string, loader GrantLoader) ([]string, error) {
	if loader == nil {
		return nil, errors.New("cache: grant loader required")
	}
	if !c.Enabled() {
		return loader(ctx)
	}

	generation, err := c.generation(ctx, roleID)
	if err != nil {
		c.degraded("read generation", roleID, err)
		return loader(ctx)
	}
	key := grantSetKey(roleID, generation)

	payload, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.degraded("read grant set", roleID, err)
		return loader(ctx)
	}
	if ok {
		var ids []string
		if err := json.Unmarshal(payload, &ids); err == nil {
			metrics.GrantCacheLookups.WithLabelValues("hit").Inc()
			return ids, nil
		}
	}
	metrics.GrantCacheLookups.WithLabelValues("miss").Inc()

	ids, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}

	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("cache: encode grant set: %w", err)
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.degraded("write grant set", roleID, err)
	}
	return ids, nil
}

// Invalidate bumps the generation of roleID so later loads miss.
func (c *GrantCache) Invalidate(ctx context.Context, roleID string) error {
	if !c.Enabled() {
		return nil
	}
	if _, err := c.store.Increment(ctx, grantGenerationPrefix+roleID); err != nil {
		return fmt.Errorf("cache: bump grant generation: %w", err)
	}
	return nil
}

// Evict deletes the grant set cached under the current generation of roleID.
func (c *GrantCache) Evict(ctx context.Context, roleID string) error {
	if !c.Enabled() {
		return nil
	}
	generation, err := c.generation(ctx, roleID)
	if err != nil {
		return fmt.Errorf("cache: read grant generation: %w", err)
	}
	if err := c.store.Delete(ctx, grantSetKey(roleID, generation)); err != nil {
		return fmt.Errorf("cache: evict grant set: %w", err)
	}
	return nil
}

func (c *GrantCache) generation(ctx context.Context, roleID string) (int64, error) {
	payload, ok, err := c.store.Get(ctx, grantGenerationPrefix+roleID)
	if err != nil || !ok {
		return 0, err
	}
	return strconv.ParseInt(string(payload), 10, 64)
}

func (c *GrantCache) degraded(op, roleID string, err error) {
	metrics.GrantCacheLookups.WithLabelValues("error").Inc()
	logger.WithModule("cache").Warn("grant cache degraded",
		zap.String("operation", op),
		zap.String("role_id", roleID),
		zap.Error(err),
	)
}

func grantSetKey(roleID string, generation int64) string {
	return fmt.Sprintf("%s%s:%d", grantSetPrefix, roleID, generation)
}
