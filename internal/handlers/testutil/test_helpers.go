package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/erprbac/internal/api"
	"github.com/charlesng35/erprbac/internal/app"
	"github.com/charlesng35/erprbac/internal/cache"
	"github.com/charlesng35/erprbac/internal/database"
	sharedtestutil "github.com/charlesng35/erprbac/internal/database/testutil"
	"github.com/charlesng35/erprbac/internal/middleware"
	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	Services *api.Services
	Config   *app.Config
}

// EnvOption customises NewEnv.
type EnvOption func(*envConfig)

type envConfig struct {
	grantCache *cache.GrantCache
}

// WithGrantCache backs the grant ledger with the provided cache.
func WithGrantCache(grantCache *cache.GrantCache) EnvOption {
	return func(cfg *envConfig) {
		cfg.grantCache = grantCache
	}
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	envCfg := envConfig{}
	for _, opt := range opts {
		opt(&envCfg)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	cfg := &app.Config{
		Server: app.ServerConfig{
			RoleHeader:  middleware.DefaultRoleHeader,
			ActorHeader: middleware.DefaultActorHeader,
		},
		RBAC: app.RBACConfig{BatchConcurrency: 4},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
	}

	svc, err := api.NewServices(db, envCfg.grantCache, cfg.RBAC.BatchConcurrency)
	require.NoError(t, err)

	router, err := api.NewRouter(cfg, svc)
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		Services: svc,
		Config:   cfg,
	}
}

// Seeded system role identifiers, exposed for readability in tests.
var (
	SuperadminRoleID    = database.SuperadminRoleID
	AdministratorRoleID = database.AdministratorRoleID
	StaffRoleID         = database.StaffRoleID
)

// CreateRole inserts a non-system role directly, bypassing the API.
func (e *Env) CreateRole(name string, level int) *models.Role {
	e.T.Helper()

	role := &models.Role{Name: name, Level: level, IsActive: true}
	require.NoError(e.T, e.DB.Create(role).Error)
	return role
}

// PermissionID resolves the catalog id of code.
func (e *Env) PermissionID(code string) string {
	e.T.Helper()

	var perm models.Permission
	require.NoError(e.T, e.DB.Where("code = ?", code).First(&perm).Error)
	return perm.ID
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request as roleID, applying JSON encoding and gateway headers.
// An empty roleID sends no role header.
func (e *Env) Request(method, path string, body any, roleID string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if roleID != "" {
		req.Header.Set(middleware.DefaultRoleHeader, roleID)
		req.Header.Set(middleware.DefaultActorHeader, "actor-"+roleID)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
