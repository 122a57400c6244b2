package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_store_ops_total",
		Help: "Token store operations by kind.",
	}, []string{"op"})

	recordsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_token_records_created_total",
		Help: "Token records created since process start.",
	})

	recordsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_token_records",
		Help: "Token records currently stored.",
	})
)

// RefreshRecordGauge recounts stored token records and updates the gauge.
// Called by the maintenance sweep; cheap at this collection's scale.
func RefreshRecordGauge() (int, error) {
	n, err := CountTokenRecords()
	if err != nil {
		return 0, err
	}
	recordsGauge.Set(float64(n))
	return n, nil
}
