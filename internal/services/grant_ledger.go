package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/erprbac/internal/cache"
	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/pkg/logger"
	"github.com/charlesng35/erprbac/pkg/metrics"
)

// ModuleCount reports how many of a module's permissions a role holds.
type ModuleCount struct {
	Granted int64 `json:"granted"`
	Total   int64 `json:"total"`
}

// GrantLedger records explicit role/permission grants. Grant and Revoke are idempotent:
// they ensure a state rather than perform a transition.
type GrantLedger struct {
	db      *gorm.DB
	catalog *CatalogService
	grants  *cache.GrantCache
	audit  *AuditService
	now    func() time.Time
}

// NewGrantLedger constructs a GrantLedger. grantCache may be nil.
func NewGrantLedger(db *gorm.DB, grantCache *cache.GrantCache, audit *AuditService) (*GrantLedger, error) {
	if db == nil {
		return nil, errors.New("grant ledger: db is required")
	}
	return &GrantLedger{
		db:      db,
		catalog: &CatalogService{db: db},
		grants:  grantCache,
		audit:   audit,
		now:     time.Now,
	}, nil
}

// Grant ensures roleID holds permissionID. An existing grant is left untouched, and a
// superadmin already holds everything, so no row is written for one.
func (l *GrantLedger) Grant(ctx context.Context, roleID, permissionID string) error {
	ctx = ensureContext(ctx)
	roleID = strings.TrimSpace(roleID)
	permissionID = strings.TrimSpace(permissionID)

	role, err := l.resolvePair(ctx, roleID, permissionID)
	if err != nil {
		return err
	}
	if role.IsSuperadmin() {
		metrics.LedgerWrites.WithLabelValues("grant", "noop").Inc()
		return nil
	}
	if err := l.invalidate(ctx, roleID); err != nil {
		metrics.LedgerWrites.WithLabelValues("grant", "error").Inc()
		return err
	}

	grant := models.RolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
		GrantedAt:    l.now().UTC(),
		GrantedBy:    actorID(ctx),
	}
	result := l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&grant)
	if result.Error != nil {
		metrics.LedgerWrites.WithLabelValues("grant", "error").Inc()
		if isForeignKeyError(result.Error) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("grant ledger: grant: %w", result.Error)
	}
	l.invalidateAfterWrite(ctx, roleID)

	if result.RowsAffected == 0 {
		metrics.LedgerWrites.WithLabelValues("grant", "noop").Inc()
		return nil
	}
	metrics.LedgerWrites.WithLabelValues("grant", "applied").Inc()

	recordAudit(l.audit, ctx, AuditEntry{
		Action:       AuditActionGrant,
		RoleID:       roleID,
		PermissionID: permissionID,
	})
	return nil
}

// Revoke ensures roleID no longer holds permissionID. A missing grant is a no-op.
// Superadmin roles fail with ErrSuperadminRevoke: their access is implicit and cannot
// be narrowed per permission.
func (l *GrantLedger) Revoke(ctx context.Context, roleID, permissionID string) error {
	ctx = ensureContext(ctx)
	roleID = strings.TrimSpace(roleID)
	permissionID = strings.TrimSpace(permissionID)

	role, err := l.resolvePair(ctx, roleID, permissionID)
	if err != nil {
		return err
	}
	if role.IsSuperadmin() {
		metrics.LedgerWrites.WithLabelValues("revoke", "rejected").Inc()
		return ErrSuperadminRevoke
	}
	if err := l.invalidate(ctx, roleID); err != nil {
		metrics.LedgerWrites.WithLabelValues("revoke", "error").Inc()
		return err
	}

	result := l.db.WithContext(ctx).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Delete(&models.RolePermission{})
	if result.Error != nil {
		metrics.LedgerWrites.WithLabelValues("revoke", "error").Inc()
		return fmt.Errorf("grant ledger: revoke: %w", result.Error)
	}
	l.invalidateAfterWrite(ctx, roleID)

	if result.RowsAffected == 0 {
		metrics.LedgerWrites.WithLabelValues("revoke", "noop").Inc()
		return nil
	}
	metrics.LedgerWrites.WithLabelValues("revoke", "applied").Inc()

	recordAudit(l.audit, ctx, AuditEntry{
		Action:       AuditActionRevoke,
		RoleID:       roleID,
		PermissionID: permissionID,
	})
	return nil
}

// ListGrants returns the permissions explicitly granted to roleID. The superadmin
// bypass is not reflected here.
func (l *GrantLedger) ListGrants(ctx context.Context, roleID string) ([]models.Permission, error) {
	ctx = ensureContext(ctx)
	roleID = strings.TrimSpace(roleID)

	if _, err := loadRole(ctx, l.db, roleID); err != nil {
		return nil, err
	}

	perms := make([]models.Permission, 0)
	if err := l.db.WithContext(ctx).
		Model(&models.Permission{}).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", roleID).
		Order("permissions.module ASC, permissions.resource ASC, permissions.action ASC").
		Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("grant ledger: list grants: %w", err)
	}
	return perms, nil
}

// HasGrant reports whether an explicit grant exists for the pair. It reads through the
// grant cache when one is configured.
func (l *GrantLedger) HasGrant(ctx context.Context, roleID, permissionID string) (bool, error) {
	ctx = ensureContext(ctx)
	roleID = strings.TrimSpace(roleID)
	permissionID = strings.TrimSpace(permissionID)

	if !l.grants.Enabled() {
		var count int64
		if err := l.db.WithContext(ctx).
			Model(&models.RolePermission{}).
			Where("role_id = ? AND permission_id = ?", roleID, permissionID).
			Count(&count).Error; err != nil {
			return false, fmt.Errorf("grant ledger: lookup grant: %w", err)
		}
		return count > 0, nil
	}

	ids, err := l.grants.Load(ctx, roleID, func(ctx context.Context) ([]string, error) {
		return l.grantedIDs(ctx, roleID)
	})
	if err != nil {
		return false, err
	}
	idx := sort.SearchStrings(ids, permissionID)
	return idx < len(ids) && ids[idx] == permissionID, nil
}

// GrantedCountByModule reports granted and total permission counts for every catalog
// module. Modules the role holds nothing in report granted == 0.
func (l *GrantLedger) GrantedCountByModule(ctx context.Context, roleID string) (map[string]ModuleCount, error) {
	ctx = ensureContext(ctx)
	roleID = strings.TrimSpace(roleID)

	if _, err := loadRole(ctx, l.db, roleID); err != nil {
		return nil, err
	}

	totals, err := l.catalog.ModuleTotals(ctx)
	if err != nil {
		return nil, err
	}

	var granted []moduleCountRow
	if err := l.db.WithContext(ctx).
		Model(&models.RolePermission{}).
		Select("permissions.module AS module, COUNT(*) AS total").
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Where("role_permissions.role_id = ?", roleID).
		Group("permissions.module").
		Scan(&granted).Error; err != nil {
		return nil, fmt.Errorf("grant ledger: count grants: %w", err)
	}

	counts := make(map[string]ModuleCount, len(totals))
	for module, total := range totals {
		counts[module] = ModuleCount{Total: total}
	}
	for _, row := range granted {
		entry := counts[row.Module]
		entry.Granted = row.Total
		counts[row.Module] = entry
	}
	return counts, nil
}

func (l *GrantLedger) grantedIDs(ctx context.Context, roleID string) ([]string, error) {
	var ids []string
	if err := l.db.WithContext(ctx).
		Model(&models.RolePermission{}).
		Where("role_id = ?", roleID).
		Pluck("permission_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("grant ledger: load grant set: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *GrantLedger) resolvePair(ctx context.Context, roleID, permissionID string) (*models.Role, error) {
	role, err := loadRole(ctx, l.db, roleID)
	if err != nil {
		return nil, err
	}
	if _, err := l.catalog.GetPermission(ctx, permissionID); err != nil {
		return nil, err
	}
	return role, nil
}

// invalidate bumps the role's cache generation before a write. A failure aborts the write
// so a cached grant set can never outlive a revocation.
func (l *GrantLedger) invalidate(ctx context.Context, roleID string) error {
	if err := l.grants.Invalidate(ctx, roleID); err != nil {
		return fmt.Errorf("grant ledger: %w", err)
	}
	return nil
}

// invalidateAfterWrite drops any set cached by a reader that raced the write. When the
// generation cannot be bumped, the set cached under the current generation is evicted.
func (l *GrantLedger) invalidateAfterWrite(ctx context.Context, roleID string) {
	err := l.grants.Invalidate(ctx, roleID)
	if err == nil {
		return
	}
	log := logger.WithModule("ledger")
	log.Warn("grant cache invalidation failed after write",
		zap.String("role_id", roleID),
		zap.Error(err),
	)
	if err := l.grants.Evict(ctx, roleID); err != nil {
		log.Error("grant cache eviction failed after write; cached grants may be stale until they expire",
			zap.String("role_id", roleID),
			zap.Error(err),
		)
	}
}
