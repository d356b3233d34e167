package services

import (
	"context"
	"errors"

	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/internal/permissions"
	"github.com/charlesng35/erprbac/pkg/metrics"
)

// AccessService answers authorization questions by role id.
type AccessService struct {
	roles     *RoleService
	catalog   *CatalogService
	ledger    *GrantLedger
	evaluator *permissions.Evaluator
}

// NewAccessService wires an evaluator over the catalog and grant ledger.
func NewAccessService(roles *RoleService, catalog *CatalogService, ledger *GrantLedger) (*AccessService, error) {
	if roles == nil || catalog == nil || ledger == nil {
		return nil, errors.New("access service: roles, catalog and ledger are required")
	}
	evaluator, err := permissions.NewEvaluator(catalog, ledger)
	if err != nil {
		return nil, err
	}
	return &AccessService{
		roles:     roles,
		catalog:   catalog,
		ledger:    ledger,
		evaluator: evaluator,
	}, nil
}

// IsPermitted resolves roleID and evaluates code. Unknown codes yield false; unknown
// roles fail with ErrRoleNotFound.
func (s *AccessService) IsPermitted(ctx context.Context, roleID, code string) (bool, error) {
	ctx = ensureContext(ctx)

	role, err := s.roles.FindRole(ctx, roleID)
	if err != nil {
		return false, err
	}
	return s.Evaluate(ctx, role, code)
}

// Evaluate runs the evaluator for an already loaded role.
func (s *AccessService) Evaluate(ctx context.Context, role *models.Role, code string) (bool, error) {
	allowed, err := s.evaluator.IsPermitted(ensureContext(ctx), role, code)

	label := code
	if _, ok := permissions.Get(code); !ok {
		label = "unknown"
	}
	switch {
	case err != nil:
		metrics.PermissionChecks.WithLabelValues(label, "error").Inc()
	case role.IsSuperadmin():
		metrics.PermissionChecks.WithLabelValues(label, "bypass").Inc()
	case allowed:
		metrics.PermissionChecks.WithLabelValues(label, "allowed").Inc()
	default:
		metrics.PermissionChecks.WithLabelValues(label, "denied").Inc()
	}
	return allowed, err
}

// EffectivePermissions returns what the role can actually exercise: the full catalog
// for a superadmin, its explicit grants otherwise.
func (s *AccessService) EffectivePermissions(ctx context.Context, roleID string) ([]models.Permission, error) {
	ctx = ensureContext(ctx)

	role, err := s.roles.FindRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSuperadmin() {
		return s.catalog.ListPermissions(ctx, PermissionFilter{})
	}
	return s.ledger.ListGrants(ctx, role.ID)
}
