package scheduler

import "github.com/prometheus/client_golang/prometheus"

// metrics are the run-observability counters/gauges spec.md's ambient
// stack calls for; wired the way the teacher's divinesense-flavored CLI
// wires prometheus/client_golang, with a single registerer threaded
// through at construction rather than relying on the global default
// registry (so multiple Schedulers in one process, e.g. in tests, don't
// collide on metric names).
type metrics struct {
	dispatched   prometheus.Counter
	finished     prometheus.Counter
	errored      prometheus.Counter
	readyDepth   prometheus.Gauge
	runningDepth prometheus.Gauge
	execSeconds  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thunkgraph_thunks_dispatched_total",
			Help: "Total thunks handed to a processor for execution.",
		}),
		finished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thunkgraph_thunks_finished_total",
			Help: "Total thunks that completed successfully.",
		}),
		errored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thunkgraph_thunks_errored_total",
			Help: "Total dispatched thunks that completed with an error (dependents failed by propagation are not counted).",
		}),
		readyDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thunkgraph_ready_queue_depth",
			Help: "Current number of thunks in the ready queue.",
		}),
		runningDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thunkgraph_running_depth",
			Help: "Current number of thunks dispatched to a worker and not yet completed.",
		}),
		execSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thunkgraph_thunk_execution_seconds",
			Help:    "Wall-clock duration of a single thunk's Execute call.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.dispatched, m.finished, m.errored, m.readyDepth, m.runningDepth, m.execSeconds)
	}
	return m
}
