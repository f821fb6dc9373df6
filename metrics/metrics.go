// Package metrics holds the Prometheus instruments of a run. They live in a private registry and are
// pushed to a pushgateway at the end of the run when one is configured.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

type RunMetrics struct {
	Registry *prometheus.Registry

	FilesConverted prometheus.Counter
	CSVRows        prometheus.Counter
	StreamsSkipped prometheus.Counter
	IoTDBRecords   prometheus.Counter
	ConvertSeconds prometheus.Histogram
	RunDuration    prometheus.Gauge
	LastRunSuccess prometheus.Gauge
}

func New() *RunMetrics {
	m := &RunMetrics{
		Registry: prometheus.NewRegistry(),
		FilesConverted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envlog_files_converted_total",
			Help: "Environment logger files converted and appended to the daily file.",
		}),
		CSVRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envlog_csv_rows_total",
			Help: "Observations written to the geostreams CSV.",
		}),
		StreamsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envlog_streams_skipped_total",
			Help: "Sensor streams left out of the geostreams CSV.",
		}),
		IoTDBRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envlog_iotdb_records_total",
			Help: "Observations inserted into IoTDB.",
		}),
		ConvertSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "envlog_convert_seconds",
			Help:    "Time to convert and append one logger file.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envlog_run_duration_seconds",
			Help: "Wall clock duration of the last run.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envlog_last_run_success",
			Help: "1 when the last run produced its outputs, 0 otherwise.",
		}),
	}
	m.Registry.MustRegister(m.FilesConverted, m.CSVRows, m.StreamsSkipped, m.IoTDBRecords,
		m.ConvertSeconds, m.RunDuration, m.LastRunSuccess)
	return m
}

// ObserveConvert records one converted file.
func (m *RunMetrics) ObserveConvert(d time.Duration) {
	m.FilesConverted.Inc()
	m.ConvertSeconds.Observe(d.Seconds())
}

func (m *RunMetrics) Finish(d time.Duration, success bool) {
	m.RunDuration.Set(d.Seconds())
	if success {
		m.LastRunSuccess.Set(1)
	} else {
		m.LastRunSuccess.Set(0)
	}
}

// Push sends every instrument to the pushgateway at url under job.
func (m *RunMetrics) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(m.Registry).PushContext(ctx)
}
