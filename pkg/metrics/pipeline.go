package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics counts ingestion pipeline outcomes.
type PipelineMetrics struct {
	ingested   *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	failed     *prometheus.CounterVec
	thumbnails *prometheus.CounterVec
}

// NewPipelineMetrics registers the ingestion counters on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	ingested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assets_ingested_total",
		Help: "Asset records written by the ingestion pipeline.",
	}, []string{"source"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assets_skipped_total",
		Help: "Finalized objects skipped by the ingestion pipeline.",
	}, []string{"reason"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assets_failed_total",
		Help: "Finalized objects that failed ingestion.",
	}, []string{"source"})
	thumbnails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thumbnails_generated_total",
		Help: "Thumbnails generated and uploaded.",
	}, []string{"kind"})
	reg.MustRegister(ingested, skipped, failed, thumbnails)
	return &PipelineMetrics{
		ingested:   ingested,
		skipped:    skipped,
		failed:     failed,
		thumbnails: thumbnails,
	}
}

// IncIngested increments the ingested counter for the given source (file/archive).
func (p *PipelineMetrics) IncIngested(source string) {
	if p == nil || p.ingested == nil {
		return
	}
	p.ingested.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncSkipped increments the skipped counter for the given reason.
func (p *PipelineMetrics) IncSkipped(reason string) {
	if p == nil || p.skipped == nil {
		return
	}
	p.skipped.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncFailed increments the failed counter for the given source.
func (p *PipelineMetrics) IncFailed(source string) {
	if p == nil || p.failed == nil {
		return
	}
	p.failed.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncThumbnail increments the generated-thumbnail counter for the given kind.
func (p *PipelineMetrics) IncThumbnail(kind string) {
	if p == nil || p.thumbnails == nil {
		return
	}
	p.thumbnails.WithLabelValues(normalizeLabel(kind)).Inc()
}
