package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_gateway_requests_total",
		Help: "Gateway requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_gateway_rate_limited_total",
		Help: "Requests rejected by the per-token rate limiter.",
	})
)
