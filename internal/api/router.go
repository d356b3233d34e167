package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/erprbac/internal/app"
	"github.com/charlesng35/erprbac/internal/cache"
	"github.com/charlesng35/erprbac/internal/handlers"
	"github.com/charlesng35/erprbac/internal/middleware"
	"github.com/charlesng35/erprbac/internal/monitoring"
	"github.com/charlesng35/erprbac/internal/services"
)

// Services bundles the RBAC services the router exposes.
type Services struct {
	Audit   *services.AuditService
	Catalog *services.CatalogService
	Ledger  *services.GrantLedger
	Roles   *services.RoleService
	Access  *services.AccessService
	Batches *services.BatchCoordinator
	Health  *monitoring.HealthManager
}

// NewServices wires the permission engine over db. grantCache may be nil.
func NewServices(db *gorm.DB, grantCache *cache.GrantCache, batchConcurrency int) (*Services, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}

	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	catalog, err := services.NewCatalogService(db)
	if err != nil {
		return nil, err
	}
	ledger, err := services.NewGrantLedger(db, grantCache, audit)
	if err != nil {
		return nil, err
	}
	roles, err := services.NewRoleService(db, ledger, grantCache, audit)
	if err != nil {
		return nil, err
	}
	access, err := services.NewAccessService(roles, catalog, ledger)
	if err != nil {
		return nil, err
	}
	batches, err := services.NewBatchCoordinator(roles, catalog, ledger, audit, batchConcurrency)
	if err != nil {
		return nil, err
	}

	health := monitoring.NewHealthManager()
	health.RegisterReadiness(monitoring.DatabaseCheck(db, 0))
	health.RegisterReadiness(monitoring.CatalogCheck(db))

	return &Services{
		Audit:   audit,
		Catalog: catalog,
		Ledger:  ledger,
		Roles:   roles,
		Access:  access,
		Batches: batches,
		Health:  health,
	}, nil
}

// NewRouter builds the Gin engine, wires middleware and registers the RBAC routes.
func NewRouter(cfg *app.Config, svc *Services) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svc == nil {
		return nil, fmt.Errorf("services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Caller(cfg.Server.RoleHeader, cfg.Server.ActorHeader))

	registerHealthRoutes(r, svc.Health)

	if err := registerRBACRoutes(r.Group("/api/rbac"), svc); err != nil {
		return nil, err
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func registerHealthRoutes(r *gin.Engine, manager *monitoring.HealthManager) {
	for _, router := range []gin.IRouter{r, r.Group("/api")} {
		router.GET("/health", handlers.Health(manager))
		router.GET("/health/ready", handlers.Health(manager))
		router.GET("/health/live", handlers.Liveness(manager))
	}
}
