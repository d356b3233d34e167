package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/erprbac/internal/app"
	"github.com/charlesng35/erprbac/internal/database"
	"github.com/charlesng35/erprbac/internal/models"
	"github.com/charlesng35/erprbac/internal/monitoring"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	return &app.Config{
		Database: app.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "rbac.db"),
		},
		RBAC:  app.RBACConfig{BatchConcurrency: 2},
		Audit: app.AuditConfig{RetentionDays: 30, Schedule: "@daily"},
	}
}

func TestBootstrapRuntimeWithoutRedis(t *testing.T) {
	cfg := testConfig(t)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Shutdown(context.Background(), zap.NewNop()) })

	require.False(t, stack.GrantCache.Enabled())
	require.Nil(t, stack.Redis)

	var superadmin models.Role
	require.NoError(t, stack.DB.First(&superadmin, "id = ?", database.SuperadminRoleID).Error)
	require.True(t, superadmin.IsSuperadmin())

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBootstrapRuntimeWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Cache.Redis = app.RedisCacheConfig{
		Enabled: true,
		Address: mr.Addr(),
		Timeout: time.Second,
		TTL:     time.Minute,
	}

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	require.True(t, stack.GrantCache.Enabled())
	require.NotNil(t, stack.Redis)

	allowed, err := stack.Services.Access.IsPermitted(context.Background(), database.StaffRoleID, "profile.profile.read")
	require.NoError(t, err)
	require.True(t, allowed)
	require.NotEmpty(t, mr.Keys())

	require.NoError(t, stack.Shutdown(context.Background(), zap.NewNop()))
	require.Nil(t, stack.DB)
	require.NoError(t, stack.Shutdown(context.Background(), zap.NewNop()))
}

func TestBootstrapRuntimeFallsBackWhenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.Cache.Redis = app.RedisCacheConfig{Enabled: true, Address: addr, Timeout: 200 * time.Millisecond}

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Shutdown(context.Background(), zap.NewNop()) })

	require.False(t, stack.GrantCache.Enabled())
	require.Nil(t, stack.Redis)

	report := stack.Services.Health.EvaluateReadiness(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBootstrapRuntimeRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}
