package service

import "github.com/prometheus/client_golang/prometheus"

var (
	tokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "tokens_issued_total",
			Help:      "Signed tokens issued, by type",
		},
		[]string{"type"},
	)
	rotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "refresh_rotations_total",
			Help:      "Refresh token rotation attempts, by result",
		},
		[]string{"result"},
	)
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "login_total",
			Help:      "Login attempts, by result",
		},
		[]string{"result"},
	)
	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the client rate limiter",
		},
	)
	rateLimitBuckets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "auth",
			Name:      "rate_limit_buckets",
			Help:      "Client buckets currently tracked by the rate limiter",
		},
	)
)

func init() {
	prometheus.MustRegister(tokensIssued, rotationsTotal, loginsTotal, rateLimited, rateLimitBuckets)
}
