package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const namespace = "vcslog"

// Collector holds the counters a dump or follow run updates
type Collector struct {
	// File metrics
	FilesProcessed *prometheus.CounterVec
	FileFailures   *prometheus.CounterVec
	ParseDuration  prometheus.Histogram

	// Record metrics
	RecordsEmitted  *prometheus.CounterVec
	UnknownFields   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	CommandExits    *prometheus.CounterVec

	// Run metrics
	LastRunTimestamp prometheus.Gauge

	registry *prometheus.Registry
}

// NewCollector creates a new metrics collector on a private registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
	}

	c.initFileMetrics()
	c.initRecordMetrics()
	c.initRunMetrics()

	return c
}

func (c *Collector) initFileMetrics() {
	c.FilesProcessed = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "files_processed_total",
			Help:      "Total number of log files processed by outcome",
		},
		[]string{"status"},
	)

	c.FileFailures = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "file_failures_total",
			Help:      "Total number of log files abandoned by failure reason",
		},
		[]string{"reason"},
	)

	c.ParseDuration = promauto.With(c.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "file_duration_seconds",
			Help:      "Time spent parsing and emitting one log file",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)
}

func (c *Collector) initRecordMetrics() {
	c.RecordsEmitted = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "records_emitted_total",
			Help:      "Total number of records written by output format",
		},
		[]string{"format"},
	)

	c.UnknownFields = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "unknown_fields_total",
			Help:      "Total number of end-line tokens dropped for an unknown prefix",
		},
		[]string{"prefix"},
	)

	c.CommandDuration = promauto.With(c.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of wrapped commands by tool",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"tool"},
	)

	c.CommandExits = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "exits_total",
			Help:      "Wrapped command completions by tool and success",
		},
		[]string{"tool", "success"},
	)
}

func (c *Collector) initRunMetrics() {
	c.LastRunTimestamp = promauto.With(c.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last dump run finished",
		},
	)
}

// knownTools bounds the tool label to the commands the wrapper is linked as
var knownTools = map[string]bool{
	"hg": true, "git": true, "svn": true, "cvs": true, "p4": true,
}

// Tool returns the tool label for a cmd line: its first word when that is a
// wrapped VCS, "other" otherwise.
func Tool(cmd string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	first = strings.Trim(first, `"`)
	if knownTools[first] {
		return first
	}
	return "other"
}

// ObserveCommand records one wrapped invocation. exitStatus is nil when the
// record carried none.
func (c *Collector) ObserveCommand(cmd string, duration float64, exitStatus *int) {
	tool := Tool(cmd)
	c.CommandDuration.WithLabelValues(tool).Observe(duration)
	if exitStatus != nil {
		c.CommandExits.WithLabelValues(tool, fmt.Sprint(*exitStatus == 0)).Inc()
	}
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes all metrics in text exposition format for the
// node_exporter textfile collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
