package service

import "github.com/prometheus/client_golang/prometheus"

var (
	pointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swan_points_awarded_total",
			Help: "Points written to the ledger",
		},
		[]string{"category"},
	)

	achievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swan_achievements_unlocked_total",
			Help: "Achievements unlocked",
		},
		[]string{"achievement"},
	)

	ethicsChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swan_ethics_checks_total",
			Help: "Ethical guard decisions by reason code",
		},
		[]string{"reason"},
	)

	engagementHealthChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swan_engagement_health_checks_total",
			Help: "Engagement health evaluations by outcome",
		},
		[]string{"healthy"},
	)

	awardFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swan_award_failures_total",
		Help: "Awards that failed at the durable tier",
	})

	// 1 启用，0 已熔断
	cacheTierEnabled = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "swan_cache_tier_enabled",
		Help: "Whether the fast cache tier is in use",
	})
)

func init() {
	prometheus.MustRegister(pointsAwarded, achievementsUnlocked, ethicsChecks, engagementHealthChecks, awardFailures, cacheTierEnabled)
}
