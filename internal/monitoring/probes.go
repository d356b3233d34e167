package monitoring

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/internal/permissions"
)

const defaultProbeTimeout = 2 * time.Second

// DatabaseCheck pings the database handle.
func DatabaseCheck(db *gorm.DB, timeout time.Duration) Check {
	return NewCheck("database", func(ctx context.Context) ProbeResult {
		start := time.Now()
		if db == nil {
			return ProbeResult{Status: StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return ResultFromError(err, time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout))
		defer cancel()

		return ResultFromError(sqlDB.PingContext(probeCtx), time.Since(start))
	})
}

// Pinger is satisfied by the Redis-backed cache store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GrantCacheCheck probes the Redis grant cache. A missing or failing cache is degraded
// rather than down: grant lookups fall back to the database.
func GrantCacheCheck(client Pinger, enabled bool, timeout time.Duration) Check {
	return NewCheck("grant_cache", func(ctx context.Context) ProbeResult {
		start := time.Now()
		if !enabled {
			return ProbeResult{Status: StatusUp, Details: "cache disabled"}
		}
		if client == nil {
			return ProbeResult{Status: StatusDegraded, Details: "cache unavailable; reading grants from database"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout))
		defer cancel()

		if err := client.Ping(probeCtx); err != nil {
			return ProbeResult{Status: StatusDegraded, Details: err.Error(), Duration: time.Since(start)}
		}
		return ProbeResult{Status: StatusUp, Duration: time.Since(start)}
	})
}

// CatalogCheck verifies every registered permission code is present in the database
// and at least one active superadmin role exists.
func CatalogCheck(db *gorm.DB) Check {
	return NewCheck("catalog", func(ctx context.Context) ProbeResult {
		start := time.Now()
		if db == nil {
			return ProbeResult{Status: StatusDown, Details: "database not configured"}
		}

		var stored int64
		if err := db.WithContext(ctx).Model(&models.Permission{}).
			Where("code IN ?", registeredCodes()).
			Count(&stored).Error; err != nil {
			return ResultFromError(err, time.Since(start))
		}
		if expected := int64(len(permissions.GetAll())); stored < expected {
			return ProbeResult{
				Status:   StatusDown,
				Details:  fmt.Sprintf("catalog incomplete: %d of %d permissions stored", stored, expected),
				Duration: time.Since(start),
			}
		}

		var superadmins int64
		if err := db.WithContext(ctx).Model(&models.Role{}).
			Where("level >= ? AND is_active = ?", models.SuperadminLevel, true).
			Count(&superadmins).Error; err != nil {
			return ResultFromError(err, time.Since(start))
		}
		if superadmins == 0 {
			return ProbeResult{Status: StatusDegraded, Details: "no active superadmin role", Duration: time.Since(start)}
		}

		return ProbeResult{Status: StatusUp, Duration: time.Since(start)}
	})
}

func registeredCodes() []string {
	defs := permissions.GetAll()
	codes := make([]string, 0, len(defs))
	for _, def := range defs {
		codes = append(codes, def.Code)
	}
	return codes
}

func chooseTimeout(provided time.Duration) time.Duration {
	if provided <= 0 {
		return defaultProbeTimeout
	}
	return provided
}
