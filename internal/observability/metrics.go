package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "forestloss"

// Metrics holds the Prometheus counters and gauges for the batch stages.
type Metrics struct {
	registry *prometheus.Registry

	// Cleaning metrics.
	RowsRead       *prometheus.CounterVec // labels: sheet
	RowsDropped    *prometheus.CounterVec // labels: reason={total_row,blank_id}
	RecordsCleaned prometheus.Counter
	MissingValues  *prometheus.CounterVec // labels: field

	// Join metrics.
	RasterSamples *prometheus.CounterVec // labels: layer={treecover,lossyear}, outcome={value,outside}
	RecordsJoined prometheus.Counter

	// Training metrics.
	ExcludedSamples *prometheus.CounterVec // labels: reason={missing_label,missing_covariate}
	TrainingSamples *prometheus.GaugeVec   // labels: partition={train,test,secondary}
	Accuracy        *prometheus.GaugeVec   // labels: stage={baseline,secondary,final}

	StageDuration *prometheus.GaugeVec // labels: stage
	LastSuccess   *prometheus.GaugeVec // labels: stage
}

// NewMetrics creates all pipeline metrics on a dedicated registry. Batch runs
// expose them through WriteTextfile rather than an HTTP endpoint.
func NewMetrics() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.RowsRead,
		m.RowsDropped,
		m.RecordsCleaned,
		m.MissingValues,
		m.RasterSamples,
		m.RecordsJoined,
		m.ExcludedSamples,
		m.TrainingSamples,
		m.Accuracy,
		m.StageDuration,
		m.LastSuccess,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_rows_read_total",
			Help:      "Catalog data rows read per sheet, total rows included.",
		}, []string{"sheet"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_rows_dropped_total",
			Help:      "Catalog rows dropped during cleaning by reason.",
		}, []string{"reason"}),
		RecordsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_cleaned_total",
			Help:      "Site records written to the cleaned table.",
		}),
		MissingValues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_values_total",
			Help:      "Numeric cells coerced to missing by column.",
		}, []string{"field"}),
		RasterSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raster_samples_total",
			Help:      "Raster point samples by layer and outcome.",
		}, []string{"layer", "outcome"}),
		RecordsJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_joined_total",
			Help:      "Site records written to the joined table.",
		}),
		ExcludedSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_excluded_total",
			Help:      "Joined records left out of training by reason.",
		}, []string{"reason"}),
		TrainingSamples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_samples",
			Help:      "Samples per partition in the last training run.",
		}, []string{"partition"}),
		Accuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_accuracy",
			Help:      "Accuracy of the last evaluation per stage.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of the last run of each stage.",
		}, []string{"stage"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run of each stage.",
		}, []string{"stage"}),
	}
}

// WriteTextfile writes the registered metrics in the node-exporter textfile
// format. Metrics built with NewMetricsForTesting have nothing to write.
func (m *Metrics) WriteTextfile(path string) error {
	if m.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
