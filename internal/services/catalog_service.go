package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/erprbac/internal/models"
)

const catalogOrder = "module ASC, resource ASC, action ASC"

// PermissionFilter narrows ListPermissions results.
type PermissionFilter struct {
	Module string
	// Query matches code or description, case-insensitively.
	Query string
}

// CatalogService reads the append-only permission catalog.
type CatalogService struct {
	db *gorm.DB
}

// NewCatalogService constructs a CatalogService using the provided database handle.
func NewCatalogService(db *gorm.DB) (*CatalogService, error) {
	if db == nil {
		return nil, errors.New("catalog service: db is required")
	}
	return &CatalogService{db: db}, nil
}

// ListPermissions returns catalog entries ordered by module, resource and action.
func (s *CatalogService) ListPermissions(ctx context.Context, filter PermissionFilter) ([]models.Permission, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Permission{})
	if module := strings.TrimSpace(filter.Module); module != "" {
		query = query.Where("module = ?", module)
	}
	if text := strings.TrimSpace(filter.Query); text != "" {
		pattern := likePattern(text)
		query = query.Where("LOWER(code) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!'", pattern, pattern)
	}

	perms := make([]models.Permission, 0)
	if err := query.Order(catalogOrder).Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("catalog service: list permissions: %w", err)
	}
	return perms, nil
}

// FindByModule returns every permission of module. Unknown modules yield an empty slice.
func (s *CatalogService) FindByModule(ctx context.Context, module string) ([]models.Permission, error) {
	module = strings.TrimSpace(module)
	if module == "" {
		return []models.Permission{}, nil
	}
	return s.ListPermissions(ctx, PermissionFilter{Module: module})
}

// FindByCode resolves a permission code, failing with ErrPermissionNotFound when unknown.
func (s *CatalogService) FindByCode(ctx context.Context, code string) (*models.Permission, error) {
	perm, ok, err := s.LookupCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionNotFound
	}
	return perm, nil
}

// LookupCode resolves a permission code, reporting ok=false for unknown codes.
func (s *CatalogService) LookupCode(ctx context.Context, code string) (*models.Permission, bool, error) {
	ctx = ensureContext(ctx)

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, false, nil
	}

	var perm models.Permission
	if err := s.db.WithContext(ctx).Where("code = ?", code).Take(&perm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("catalog service: lookup code: %w", err)
	}
	return &perm, true, nil
}

// GetPermission loads a permission by id.
func (s *CatalogService) GetPermission(ctx context.Context, id string) (*models.Permission, error) {
	ctx = ensureContext(ctx)

	var perm models.Permission
	if err := s.db.WithContext(ctx).Take(&perm, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPermissionNotFound
		}
		return nil, fmt.Errorf("catalog service: load permission: %w", err)
	}
	return &perm, nil
}

// Modules lists the distinct catalog modules in sorted order.
func (s *CatalogService) Modules(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)

	var modules []string
	if err := s.db.WithContext(ctx).
		Model(&models.Permission{}).
		Distinct("module").
		Order("module ASC").
		Pluck("module", &modules).Error; err != nil {
		return nil, fmt.Errorf("catalog service: list modules: %w", err)
	}
	return modules, nil
}

type moduleCountRow struct {
	Module string
	Total  int64
}

// ModuleTotals counts catalog permissions per module.
func (s *CatalogService) ModuleTotals(ctx context.Context) (map[string]int64, error) {
	ctx = ensureContext(ctx)

	var rows []moduleCountRow
	if err := s.db.WithContext(ctx).
		Model(&models.Permission{}).
		Select("module, COUNT(*) AS total").
		Group("module").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("catalog service: count modules: %w", err)
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.Module] = row.Total
	}
	return totals, nil
}
