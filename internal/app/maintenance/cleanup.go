package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/internal/services"
	"github.com/charlesng35/erprbac/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultAuditSpec          = "@daily"
	defaultSweepSpec          = "@hourly"
)

// Cleaner coordinates background maintenance: pruning stale RBAC audit entries and
// sweeping grants whose role or permission row has disappeared.
type Cleaner struct {
	db        *gorm.DB
	audit     *services.AuditService
	cron      *cron.Cron
	log       *zap.Logger
	enabled   bool
	retention int

	auditSchedule string
	sweepSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// WithSweepSchedule overrides the cron specification for the orphaned grant sweep.
func WithSweepSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sweepSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(db *gorm.DB, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:            db,
		audit:         audit,
		retention:     defaultAuditRetentionDays,
		auditSchedule: defaultAuditSpec,
		sweepSchedule: defaultSweepSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.audit != nil || cleaner.db != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			removed, err := c.audit.CleanupOlderThan(context.Background(), c.retention)
			if err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
				return
			}
			if removed > 0 {
				c.log.Info("audit entries pruned", zap.Int64("removed", removed), zap.Int("retention_days", c.retention))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule audit cleanup: %w", err)
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.sweepSchedule, func() {
			removed, err := SweepOrphanGrants(context.Background(), c.db)
			if err != nil {
				c.log.Warn("orphan grant sweep failed", zap.Error(err))
				return
			}
			if removed > 0 {
				c.log.Warn("orphaned grants removed", zap.Int64("removed", removed))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule grant sweep: %w", err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.audit != nil && c.retention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil {
		if _, err := SweepOrphanGrants(ctx, c.db); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// SweepOrphanGrants deletes grants that reference a missing role or permission. Foreign keys
// normally prevent these, but databases migrated with constraints disabled can accumulate them.
func SweepOrphanGrants(ctx context.Context, db *gorm.DB) (int64, error) {
	if db == nil {
		return 0, errors.New("sweep grants: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("role_id NOT IN (?)", db.Model(&models.Role{}).Select("id")).
		Or("permission_id NOT IN (?)", db.Model(&models.Permission{}).Select("id")).
		Delete(&models.RolePermission{})
	if result.Error != nil {
		return 0, fmt.Errorf("sweep grants: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// sweepDeadline bounds the shutdown sweep so a stuck database cannot block exit.
const sweepDeadline = 10 * time.Second

// Shutdown stops the scheduler and runs every job one final time.
func (c *Cleaner) Shutdown(ctx context.Context) error {
	<-c.Stop().Done()

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, sweepDeadline)
	defer cancel()
	return c.RunOnce(runCtx)
}
