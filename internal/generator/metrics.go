package generator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrimage_generations_total",
			Help: "Total number of image generations",
		},
		[]string{"status"}, // status: ok, fetch_error, embed_error, not_readable, save_error
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrimage_stage_duration_seconds",
			Help:    "Duration of generation stages in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	validationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qrimage_validation_attempts",
			Help:    "Number of decoding attempts needed for a successful validation",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
		},
	)
)
