package registry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/linemap/pkg/codec"
)

const (
	resultHit         = "hit"
	resultMiss        = "miss"
	resultNegativeHit = "negative_hit"

	statusSuccess     = "success"
	statusErrorPrefix = "error:"
	statusNotFound    = statusErrorPrefix + "not_found"
	statusStore       = statusErrorPrefix + "store"
)

type metrics struct {
	lookups        *prometheus.CounterVec
	loads          *prometheus.CounterVec
	loadDuration   prometheus.Histogram
	blobSize       prometheus.Histogram
	cachedModules  prometheus.Gauge
	missingModules prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		lookups: registerOrGet(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linemap_registry_lookups_total",
			Help: "Line map lookups by cache result.",
		}, []string{"result"})),
		loads: registerOrGet(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linemap_registry_loads_total",
			Help: "Line map resource loads by status.",
		}, []string{"status"})),
		loadDuration: registerOrGet(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linemap_registry_load_duration_seconds",
			Help:    "Time spent fetching and decoding a line map resource.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		})),
		blobSize: registerOrGet(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "linemap_registry_blob_size_bytes",
			Help: "Size of fetched line map resources.",
			// 1KB to 64MB
			Buckets: prometheus.ExponentialBuckets(1024, 4, 9),
		})),
		cachedModules: registerOrGet(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linemap_registry_cached_modules",
			Help: "Number of modules with a decoded line map in memory.",
		})),
		missingModules: registerOrGet(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linemap_registry_missing_modules",
			Help: "Number of modules remembered as having no usable line map.",
		})),
	}
}

// registerOrGet returns the already registered collector when c collides
// with one. A nil registerer skips registration.
func registerOrGet[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(T)
		}
		panic(err)
	}
	return c
}

func decodeStatus(err error) string {
	if stage, ok := codec.FailureStage(err); ok {
		return statusErrorPrefix + stage.String()
	}
	return statusStore
}
