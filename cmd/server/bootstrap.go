package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/erprbac/internal/api"
	"github.com/charlesng35/erprbac/internal/app"
	"github.com/charlesng35/erprbac/internal/app/maintenance"
	"github.com/charlesng35/erprbac/internal/cache"
	"github.com/charlesng35/erprbac/internal/database"
	"github.com/charlesng35/erprbac/internal/monitoring"
	"github.com/charlesng35/erprbac/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *cache.RedisClient
	GrantCache *cache.GrantCache
	Services   *api.Services
	Cleaner    *maintenance.Cleaner
	Router     *gin.Engine
}

// bootstrapRuntime initialises the database, the grant cache, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	var store cache.Store
	if cfg.Cache.GrantCacheEnabled() {
		if stack.Redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; grant checks will read the database directly", zap.Error(err))
			stack.Redis = nil
		} else {
			store = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	stack.GrantCache = cache.NewGrantCache(store, cfg.Cache.GrantCacheTTL())

	stack.Services, err = api.NewServices(stack.DB, stack.GrantCache, cfg.RBAC.BatchConcurrency)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	var pinger monitoring.Pinger
	if stack.Redis != nil {
		pinger = stack.Redis
	}
	stack.Services.Health.RegisterReadiness(monitoring.GrantCacheCheck(pinger, cfg.Cache.GrantCacheEnabled(), 0))

	stack.Cleaner = maintenance.NewCleaner(stack.DB, stack.Services.Audit,
		maintenance.WithAuditRetentionDays(cfg.Audit.RetentionDays),
		maintenance.WithAuditSchedule(cfg.Audit.Schedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(cfg, stack.Services)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var errs error

	if s.Cleaner != nil {
		if err := s.Cleaner.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("maintenance: %w", err))
		}
		s.Cleaner = nil
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("redis: %w", err))
		}
		s.Redis = nil
	}

	if s.DB != nil {
		if err := closeDatabase(s.DB); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("database: %w", err))
		}
		s.DB = nil
	}

	if errs != nil && log != nil {
		for _, err := range multierr.Errors(errs) {
			log.Warn("shutdown step failed", zap.Error(err))
		}
	}
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = closeDatabase(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("obtain sql DB: %w", err)
	}
	return sqlDB.Close()
}
