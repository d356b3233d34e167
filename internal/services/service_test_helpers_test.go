package services

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/erprbac/internal/cache"
	"github.com/charlesng35/erprbac/internal/database/testutil"
	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/internal/permissions"
)

type testServices struct {
	db      *gorm.DB
	audit   *AuditService
	catalog *CatalogService
	ledger  *GrantLedger
	roles   *RoleService
	access  *AccessService
	batch   *BatchCoordinator
	grants  *cache.GrantCache
	redis   *miniredis.Miniredis
}

type testServicesConfig struct {
	seed      bool
	redis     bool
	wrapStore func(cache.Store) cache.Store
}

type testServicesOption func(*testServicesConfig)

// withEmptyCatalog skips catalog and system role seeding so tests can insert their own.
func withEmptyCatalog() testServicesOption {
	return func(cfg *testServicesConfig) { cfg.seed = false }
}

// withRedisCache backs the grant cache with an in-process Redis server.
func withRedisCache() testServicesOption {
	return func(cfg *testServicesConfig) { cfg.redis = true }
}

// withStoreWrapper backs the grant cache with Redis seen through wrap.
func withStoreWrapper(wrap func(cache.Store) cache.Store) testServicesOption {
	return func(cfg *testServicesConfig) {
		cfg.redis = true
		cfg.wrapStore = wrap
	}
}

func newTestServices(t *testing.T, opts ...testServicesOption) *testServices {
	t.Helper()

	cfg := testServicesConfig{seed: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	var db *gorm.DB
	if cfg.seed {
		db = testutil.MustOpenTestDB(t, testutil.WithSeedData())
	} else {
		db = testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	}

	env := &testServices{db: db}

	var store cache.Store
	if cfg.redis {
		env.redis = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: env.redis.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		store = cache.NewRedisStore(client)
		if cfg.wrapStore != nil {
			store = cfg.wrapStore(store)
		}
	}
	env.grants = cache.NewGrantCache(store, time.Minute)

	var err error
	env.audit, err = NewAuditService(db)
	require.NoError(t, err)
	env.catalog, err = NewCatalogService(db)
	require.NoError(t, err)
	env.ledger, err = NewGrantLedger(db, env.grants, env.audit)
	require.NoError(t, err)
	env.roles, err = NewRoleService(db, env.ledger, env.grants, env.audit)
	require.NoError(t, err)
	env.access, err = NewAccessService(env.roles, env.catalog, env.ledger)
	require.NoError(t, err)
	env.batch, err = NewBatchCoordinator(env.roles, env.catalog, env.ledger, env.audit, 4)
	require.NoError(t, err)

	return env
}

func (e *testServices) createRole(t *testing.T, name string, level int) *models.Role {
	t.Helper()
	role, err := e.roles.CreateRole(context.Background(), CreateRoleInput{Name: name, Level: level})
	require.NoError(t, err)
	return role
}

// insertSuperadmin stores a level 99 role directly, bypassing the API level check.
func (e *testServices) insertSuperadmin(t *testing.T, name string) *models.Role {
	t.Helper()
	role := &models.Role{Name: name, Level: models.SuperadminLevel, IsActive: true}
	require.NoError(t, e.db.Create(role).Error)
	return role
}

func (e *testServices) insertPermissions(t *testing.T, codes ...string) []models.Permission {
	t.Helper()
	perms := make([]models.Permission, 0, len(codes))
	for _, code := range codes {
		module, resource, action, err := permissions.ParseCode(code)
		require.NoError(t, err)
		perm := models.Permission{
			BaseModel: models.BaseModel{ID: permissions.IDForCode(code)},
			Code:      code,
			Module:    module,
			Resource:  resource,
			Action:    action,
		}
		require.NoError(t, e.db.Create(&perm).Error)
		perms = append(perms, perm)
	}
	return perms
}

func (e *testServices) permissionByCode(t *testing.T, code string) *models.Permission {
	t.Helper()
	perm, err := e.catalog.FindByCode(context.Background(), code)
	require.NoError(t, err)
	return perm
}

func (e *testServices) grantRows(t *testing.T, roleID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.RolePermission{}).Where("role_id = ?", roleID).Count(&count).Error)
	return count
}
