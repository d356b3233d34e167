package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/erprbac/internal/models"
)

// CatalogLookup resolves a permission code to its catalog entry. ok is false for
// unknown codes.
type CatalogLookup interface {
	LookupCode(ctx context.Context, code string) (perm *models.Permission, ok bool, err error)
}

// GrantLookup reports whether an explicit grant exists for a role/permission pair.
type GrantLookup interface {
	HasGrant(ctx context.Context, roleID, permissionID string) (bool, error)
}

// Evaluator decides whether a role may exercise a permission code. It holds no state of
// its own beyond the lookups it is constructed with.
type Evaluator struct {
	catalog CatalogLookup
	grants  GrantLookup
}

// NewEvaluator constructs an evaluator over the provided lookups.
func NewEvaluator(catalog CatalogLookup, grants GrantLookup) (*Evaluator, error) {
	if catalog == nil {
		return nil, errors.New("permission evaluator: catalog lookup is required")
	}
	if grants == nil {
		return nil, errors.New("permission evaluator: grant lookup is required")
	}
	return &Evaluator{catalog: catalog, grants: grants}, nil
}

// IsPermitted applies the superadmin bypass, then resolves the code and checks the
// grant ledger. Unknown codes are denied without error.
func (e *Evaluator) IsPermitted(ctx context.Context, role *models.Role, code string) (bool, error) {
	if role == nil {
		return false, errors.New("permission evaluator: role is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	code = strings.TrimSpace(code)

	if role.IsSuperadmin() {
		return true, nil
	}

	perm, ok, err := e.catalog.LookupCode(ctx, code)
	if err != nil {
		return false, fmt.Errorf("permission evaluator: resolve %q: %w", code, err)
	}
	if !ok {
		return false, nil
	}

	granted, err := e.grants.HasGrant(ctx, role.ID, perm.ID)
	if err != nil {
		return false, fmt.Errorf("permission evaluator: grant lookup: %w", err)
	}
	return granted, nil
}
