package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PermissionChecks counts evaluator decisions by permission code and result (allowed|denied|bypass|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erprbac_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"permission", "result"},
	)

	// LedgerWrites counts grant ledger mutations by operation (grant|revoke) and outcome (applied|noop|error).
	LedgerWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erprbac_ledger_writes_total",
			Help: "Grant ledger writes by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// BatchItems counts individual permissions processed by module batch operations.
	BatchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erprbac_batch_items_total",
			Help: "Permissions processed by module grant/revoke batches",
		},
		[]string{"operation", "result"},
	)

	// GrantCacheLookups records grant-set cache lookups (hit|miss|error).
	GrantCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erprbac_grant_cache_lookups_total",
			Help: "Grant set cache lookups",
		},
		[]string{"result"},
	)

	// RouteAuthorizations counts permission guard decisions on protected routes.
	RouteAuthorizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erprbac_route_authorizations_total",
			Help: "Permission guard decisions on protected HTTP routes",
		},
		[]string{"permission", "decision"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "erprbac_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
