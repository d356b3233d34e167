package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/erprbac/internal/cache"
	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/pkg/logger"
)

// RoleService provides role management on top of the grant ledger.
type RoleService struct {
	db           *gorm.DB
	ledger       *GrantLedger
	grants       *cache.GrantCache
	auditService *AuditService
}

// NewRoleService constructs a RoleService using the provided database handle.
func NewRoleService(db *gorm.DB, ledger *GrantLedger, grantCache *cache.GrantCache, audit *AuditService) (*RoleService, error) {
	if db == nil {
		return nil, errors.New("role service: db is required")
	}
	if ledger == nil {
		return nil, errors.New("role service: grant ledger is required")
	}
	return &RoleService{
		db:           db,
		ledger:       ledger,
		grants:       grantCache,
		auditService: audit,
	}, nil
}

// CreateRoleInput describes the payload accepted by CreateRole.
type CreateRoleInput struct {
	Name        string
	Description string
	Level       int
}

// UpdateRoleInput describes a partial patch. Nil fields are left unchanged.
type UpdateRoleInput struct {
	Name        *string
	Description *string
	Level       *int
	IsActive    *bool
}

// RoleFilter narrows ListRoles results.
type RoleFilter struct {
	// Query matches name or description, case-insensitively.
	Query string
}

// RoleDetail is a role together with its explicitly granted permissions.
type RoleDetail struct {
	models.Role
	Permissions []models.Permission `json:"permissions"`
}

// CreateRole registers a new non-system, active role.
func (s *RoleService) CreateRole(ctx context.Context, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrRoleNameRequired
	}
	if err := validateRoleLevel(input.Level); err != nil {
		return nil, err
	}

	role := &models.Role{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Level:       input.Level,
		IsSystem:    false,
		IsActive:    true,
	}

	if err := s.db.WithContext(ctx).Create(role).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrRoleNameTaken
		}
		return nil, fmt.Errorf("role service: create role: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action: AuditActionRoleCreate,
		RoleID: role.ID,
		Metadata: map[string]any{
			"name":  role.Name,
			"level": role.Level,
		},
	})

	return role, nil
}

// UpdateRole applies a partial patch. is_system can never be changed.
func (s *RoleService) UpdateRole(ctx context.Context, roleID string, input UpdateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	role, err := loadRole(ctx, s.db, roleID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrRoleNameRequired
		}
		if name != role.Name {
			updates["name"] = name
		}
	}
	if input.Description != nil {
		if desc := strings.TrimSpace(*input.Description); desc != role.Description {
			updates["description"] = desc
		}
	}
	if input.Level != nil {
		if role.IsSuperadmin() && *input.Level != role.Level {
			return nil, ErrReservedRoleLevel
		}
		if *input.Level != role.Level {
			if err := validateRoleLevel(*input.Level); err != nil {
				return nil, err
			}
			updates["level"] = *input.Level
		}
	}
	if input.IsActive != nil && *input.IsActive != role.IsActive {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) == 0 {
		return role, nil
	}

	if err := s.db.WithContext(ctx).Model(role).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrRoleNameTaken
		}
		return nil, fmt.Errorf("role service: update role: %w", err)
	}

	role, err = loadRole(ctx, s.db, roleID)
	if err != nil {
		return nil, fmt.Errorf("role service: reload role: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   AuditActionRoleUpdate,
		RoleID:   role.ID,
		Metadata: updates,
	})

	return role, nil
}

// DeleteRole removes a non-system role together with its grants in one transaction.
func (s *RoleService) DeleteRole(ctx context.Context, roleID string) error {
	ctx = ensureContext(ctx)

	var deleted models.Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := loadRole(ctx, tx, roleID)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return ErrSystemRoleProtected
		}

		if err := tx.Where("role_id = ?", role.ID).Delete(&models.RolePermission{}).Error; err != nil {
			return fmt.Errorf("role service: delete role grants: %w", err)
		}
		if err := tx.Delete(role).Error; err != nil {
			return fmt.Errorf("role service: delete role: %w", err)
		}
		deleted = *role
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.grants.Invalidate(ctx, deleted.ID); err != nil {
		logger.WithModule("roles").Warn("grant cache invalidation failed after role delete",
			zap.String("role_id", deleted.ID),
			zap.Error(err),
		)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action: AuditActionRoleDelete,
		RoleID: deleted.ID,
		Metadata: map[string]any{
			"name": deleted.Name,
		},
	})

	return nil
}

// GetRole returns the role and its explicitly granted permissions.
func (s *RoleService) GetRole(ctx context.Context, roleID string) (*RoleDetail, error) {
	ctx = ensureContext(ctx)

	role, err := loadRole(ctx, s.db, roleID)
	if err != nil {
		return nil, err
	}
	perms, err := s.ledger.ListGrants(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return &RoleDetail{Role: *role, Permissions: perms}, nil
}

// FindRole loads a role without its grants.
func (s *RoleService) FindRole(ctx context.Context, roleID string) (*models.Role, error) {
	return loadRole(ensureContext(ctx), s.db, roleID)
}

// ListRoles returns roles ordered by level descending, then name.
func (s *RoleService) ListRoles(ctx context.Context, filter RoleFilter) ([]models.Role, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Role{})
	if text := strings.TrimSpace(filter.Query); text != "" {
		pattern := likePattern(text)
		query = query.Where("LOWER(name) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!'", pattern, pattern)
	}

	roles := make([]models.Role, 0)
	if err := query.Order("level DESC, name ASC").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("role service: list roles: %w", err)
	}
	return roles, nil
}

func validateRoleLevel(level int) error {
	if level == models.SuperadminLevel {
		return ErrReservedRoleLevel
	}
	if level < models.MinRoleLevel || level > models.MaxRoleLevel {
		return ErrInvalidRoleLevel
	}
	return nil
}

func loadRole(ctx context.Context, db *gorm.DB, roleID string) (*models.Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, ErrRoleNotFound
	}

	var role models.Role
	if err := db.WithContext(ctx).Take(&role, "id = ?", roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("load role: %w", err)
	}
	return &role, nil
}
