// Package metrics records Backend operations as Prometheus series.
package metrics

import (
	"context"
	"time"

	"github.com/goforj/pagecache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pagecache"

// Result label values.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultOK    = "ok"
	ResultError = "error"
)

// Observer implements pagecache.Observer.
type Observer struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ pagecache.Observer = (*Observer)(nil)

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Observer{
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of cache operations by driver, operation and result.",
		}, []string{"driver", "op", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of cache operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"driver", "op"}),
	}
}

// OnCacheOp implements pagecache.Observer.
func (o *Observer) OnCacheOp(_ context.Context, op string, _ string, hit bool, err error, dur time.Duration, driver pagecache.Driver) {
	d := string(driver)
	o.ops.WithLabelValues(d, op, result(op, hit, err)).Inc()
	o.duration.WithLabelValues(d, op).Observe(dur.Seconds())
}

func result(op string, hit bool, err error) string {
	switch {
	case err != nil:
		return ResultError
	case op != "get":
		return ResultOK
	case hit:
		return ResultHit
	default:
		return ResultMiss
	}
}
