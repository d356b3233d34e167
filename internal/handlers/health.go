package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/erprbac/internal/monitoring"
)

// Health renders the readiness report of manager. Degraded dependencies still answer 200.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return healthHandler(manager, (*monitoring.HealthManager).EvaluateReadiness)
}

// Liveness renders the liveness report of manager.
func Liveness(manager *monitoring.HealthManager) gin.HandlerFunc {
	return healthHandler(manager, (*monitoring.HealthManager).EvaluateLiveness)
}

func healthHandler(manager *monitoring.HealthManager, evaluate func(*monitoring.HealthManager, context.Context) monitoring.HealthReport) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil {
			manager = monitoring.NewHealthManager()
		}
		report := evaluate(manager, requestContext(c))
		status := http.StatusOK
		if !report.Success {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"success":    report.Success,
			"status":     report.Status,
			"checks":     report.Checks,
			"checked_at": time.Now().UTC(),
		})
	}
}
