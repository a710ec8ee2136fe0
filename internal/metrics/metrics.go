package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "picha_portal"

var (
	// GuardDecisionsTotal counts route guard outcomes.
	GuardDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Route guard outcomes by guard and decision.",
	}, []string{"guard", "decision"})

	// EntitlementResolutionsTotal counts where applied entitlement came from.
	EntitlementResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entitlement_resolutions_total",
		Help:      "Entitlement fetches by source (subscription or fallback) and reason.",
	}, []string{"source", "reason"})

	// EntitlementStaleDiscardsTotal counts fetch results dropped because the
	// identity changed while the fetch was in flight.
	EntitlementStaleDiscardsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entitlement_stale_discards_total",
		Help:      "Entitlement fetch results discarded as stale.",
	})

	// VisitorsActive is the number of visitor sessions held in memory.
	VisitorsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "visitors_active",
		Help:      "Visitor sessions currently held by the registry.",
	})

	// VisitorEvictionsTotal counts visitors dropped from the registry.
	VisitorEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "visitor_evictions_total",
		Help:      "Visitor sessions evicted by TTL or capacity.",
	})

	// UpstreamErrorsTotal counts failed marketplace API calls seen by handlers.
	UpstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_errors_total",
		Help:      "Marketplace API failures by operation.",
	}, []string{"operation"})
)
