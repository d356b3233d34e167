package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/pkg/logger"
	"github.com/charlesng35/erprbac/pkg/metrics"
)

const defaultBatchConcurrency = 8

// Batch operations.
const (
	BatchOperationGrant  = "grant"
	BatchOperationRevoke = "revoke"
)

// BatchItem reports the outcome of one permission inside a module batch.
type BatchItem struct {
	PermissionID string `json:"permission_id"`
	Code         string `json:"code"`
	Error        string `json:"error,omitempty"`
}

// BatchResult lists exactly which permissions a module batch applied and which failed.
type BatchResult struct {
	RoleID    string      `json:"role_id"`
	Module    string      `json:"module"`
	Operation string      `json:"operation"`
	Bypass    bool        `json:"bypass"`
	Succeeded []BatchItem `json:"succeeded"`
	Failed    []BatchItem `json:"failed"`
}

// SucceededIDs returns the permission ids applied by the batch.
func (r *BatchResult) SucceededIDs() []string {
	return batchIDs(r.Succeeded)
}

// FailedIDs returns the permission ids the batch could not apply.
func (r *BatchResult) FailedIDs() []string {
	return batchIDs(r.Failed)
}

func batchIDs(items []BatchItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.PermissionID)
	}
	return ids
}

// GrantWriter is the part of the grant ledger a module batch drives.
type GrantWriter interface {
	Grant(ctx context.Context, roleID, permissionID string) error
	Revoke(ctx context.Context, roleID, permissionID string) error
	ListGrants(ctx context.Context, roleID string) ([]models.Permission, error)
}

// BatchCoordinator fans module-wide grants and revokes out to the grant ledger.
// Individual calls are independent; the batch never fails as a unit once the role
// is resolved.
type BatchCoordinator struct {
	roles       *RoleService
	catalog     *CatalogService
	ledger      GrantWriter
	audit       *AuditService
	concurrency int
}

// NewBatchCoordinator constructs a coordinator. concurrency <= 0 selects the default.
func NewBatchCoordinator(roles *RoleService, catalog *CatalogService, ledger GrantWriter, audit *AuditService, concurrency int) (*BatchCoordinator, error) {
	if roles == nil || catalog == nil || ledger == nil {
		return nil, errors.New("batch coordinator: roles, catalog and ledger are required")
	}
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	return &BatchCoordinator{
		roles:       roles,
		catalog:     catalog,
		ledger:      ledger,
		audit:       audit,
		concurrency: concurrency,
	}, nil
}

// GrantModule grants every permission of module the role does not hold yet. For a
// superadmin it returns immediately without touching the ledger.
func (c *BatchCoordinator) GrantModule(ctx context.Context, roleID, module string) (*BatchResult, error) {
	ctx = ensureContext(ctx)
	module = strings.TrimSpace(module)

	role, err := c.roles.FindRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	result := newBatchResult(role.ID, module, BatchOperationGrant)
	if role.IsSuperadmin() {
		result.Bypass = true
		return result, nil
	}

	catalog, held, err := c.moduleState(ctx, role.ID, module)
	if err != nil {
		return nil, err
	}

	var missing []models.Permission
	for _, perm := range catalog {
		if _, ok := held[perm.ID]; !ok {
			missing = append(missing, perm)
		}
	}

	c.run(ctx, result, missing, c.ledger.Grant)
	c.recordBatch(ctx, AuditActionModuleGrant, result)
	return result, nil
}

// RevokeModule revokes every permission of module the role holds. Superadmin roles are
// rejected with ErrSuperadminRevoke and the ledger is left untouched.
func (c *BatchCoordinator) RevokeModule(ctx context.Context, roleID, module string) (*BatchResult, error) {
	ctx = ensureContext(ctx)
	module = strings.TrimSpace(module)

	role, err := c.roles.FindRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSuperadmin() {
		return nil, ErrSuperadminRevoke
	}

	result := newBatchResult(role.ID, module, BatchOperationRevoke)

	catalog, held, err := c.moduleState(ctx, role.ID, module)
	if err != nil {
		return nil, err
	}

	var present []models.Permission
	for _, perm := range catalog {
		if _, ok := held[perm.ID]; ok {
			present = append(present, perm)
		}
	}

	c.run(ctx, result, present, c.ledger.Revoke)
	c.recordBatch(ctx, AuditActionModuleRevoke, result)
	return result, nil
}

func newBatchResult(roleID, module, operation string) *BatchResult {
	return &BatchResult{
		RoleID:    roleID,
		Module:    module,
		Operation: operation,
		Succeeded: []BatchItem{},
		Failed:    []BatchItem{},
	}
}

func (c *BatchCoordinator) moduleState(ctx context.Context, roleID, module string) ([]models.Permission, map[string]struct{}, error) {
	catalog, err := c.catalog.FindByModule(ctx, module)
	if err != nil {
		return nil, nil, err
	}
	grants, err := c.ledger.ListGrants(ctx, roleID)
	if err != nil {
		return nil, nil, err
	}
	held := make(map[string]struct{}, len(grants))
	for _, perm := range grants {
		held[perm.ID] = struct{}{}
	}
	return catalog, held, nil
}

type ledgerCall func(ctx context.Context, roleID, permissionID string) error

// run issues one ledger call per permission with bounded concurrency. Calls already
// issued complete even if the caller abandons the batch; calls not yet issued are
// reported as failed.
func (c *BatchCoordinator) run(ctx context.Context, result *BatchResult, perms []models.Permission, call ledgerCall) {
	if len(perms) == 0 {
		return
	}

	outcomes := make([]error, len(perms))
	detached := context.WithoutCancel(ctx)

	var group errgroup.Group
	group.SetLimit(c.concurrency)
	for i := range perms {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = err
				return nil
			}
			outcomes[i] = call(detached, result.RoleID, perms[i].ID)
			return nil
		})
	}
	_ = group.Wait()

	log := logger.WithModule("batch")
	for i, perm := range perms {
		item := BatchItem{PermissionID: perm.ID, Code: perm.Code}
		if err := outcomes[i]; err != nil {
			item.Error = err.Error()
			result.Failed = append(result.Failed, item)
			metrics.BatchItems.WithLabelValues(result.Operation, "failed").Inc()
			log.Warn("module batch item failed",
				zap.String("operation", result.Operation),
				zap.String("role_id", result.RoleID),
				zap.String("permission", perm.Code),
				zap.Error(err),
			)
			continue
		}
		result.Succeeded = append(result.Succeeded, item)
		metrics.BatchItems.WithLabelValues(result.Operation, "succeeded").Inc()
	}
}

func (c *BatchCoordinator) recordBatch(ctx context.Context, action string, result *BatchResult) {
	outcome := "success"
	switch {
	case len(result.Failed) > 0 && len(result.Succeeded) == 0:
		outcome = "failure"
	case len(result.Failed) > 0:
		outcome = "partial"
	}
	recordAudit(c.audit, context.WithoutCancel(ctx), AuditEntry{
		Action: action,
		RoleID: result.RoleID,
		Result: outcome,
		Metadata: map[string]any{
			"module":    result.Module,
			"succeeded": result.SucceededIDs(),
			"failed":    result.FailedIDs(),
		},
	})
}
