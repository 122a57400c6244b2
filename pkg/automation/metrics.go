package automation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatrelay_events_total",
	Help: "Network events handled, by type and outcome.",
}, []string{"type", "outcome"})
