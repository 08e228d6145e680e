package explorer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMaterializations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "tree",
		Name:      "materializations_total",
		Help:      "Total number of root materializations, by outcome",
	}, []string{"outcome"})
	metricMaterializationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "explorer",
		Subsystem: "tree",
		Name:      "materialization_seconds",
		Help:      "Time spent materializing one root",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
	})
	metricMaterializedNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "explorer",
		Subsystem: "tree",
		Name:      "materialized_nodes",
		Help:      "Number of visible nodes produced by a successful materialization",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})

	metricWatchTargets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "explorer",
		Subsystem: "watch",
		Name:      "targets",
		Help:      "Number of directories in the active watch set",
	})
	metricWatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "watch",
		Name:      "failures_total",
		Help:      "Total number of failed watch and unwatch calls",
	}, []string{"operation"})

	metricTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "notifier",
		Name:      "triggers_total",
		Help:      "Total number of recompute requests",
	})
	metricCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "notifier",
		Name:      "deferred_cycles_total",
		Help:      "Total number of cycles deferred behind an in-flight cycle",
	})
	metricCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "notifier",
		Name:      "cycles_total",
		Help:      "Total number of recompute and broadcast cycles",
	})
	metricSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "explorer",
		Subsystem: "notifier",
		Name:      "subscribers",
		Help:      "Number of connected subscribers",
	})
)

func observeMaterialization(elapsed time.Duration, tree *FlatTree, err error) {
	metricMaterializationSeconds.Observe(elapsed.Seconds())
	if err != nil {
		metricMaterializations.WithLabelValues(string(KindOf(err))).Inc()
		return
	}
	metricMaterializations.WithLabelValues("ok").Inc()
	metricMaterializedNodes.Observe(float64(tree.Len()))
}
