package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records extraction pipeline activity.
type PipelineMetrics struct {
	jobDuration      *prometheus.HistogramVec
	jobsCompleted    *prometheus.CounterVec
	jobsFailed       *prometheus.CounterVec
	supplierRequests *prometheus.CounterVec
	imagesDownloaded prometheus.Counter
	imagesFailed     prometheus.Counter
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "import_job_duration_seconds",
		Help:    "Duration of supplier import jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"supplier"})
	jobsCompleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_jobs_completed",
		Help: "Import jobs that finished successfully.",
	}, []string{"supplier"})
	jobsFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_jobs_failed",
		Help: "Import jobs that ended in a failure state.",
	}, []string{"supplier"})
	supplierRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supplier_requests_total",
		Help: "Outbound supplier requests by outcome.",
	}, []string{"supplier", "outcome"})
	imagesDownloaded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "supplier_images_downloaded",
		Help: "Supplier images fetched and validated.",
	})
	imagesFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "supplier_images_failed",
		Help: "Supplier image downloads that were skipped or rejected.",
	})
	reg.MustRegister(jobDuration, jobsCompleted, jobsFailed, supplierRequests, imagesDownloaded, imagesFailed)
	return &PipelineMetrics{
		jobDuration:      jobDuration,
		jobsCompleted:    jobsCompleted,
		jobsFailed:       jobsFailed,
		supplierRequests: supplierRequests,
		imagesDownloaded: imagesDownloaded,
		imagesFailed:     imagesFailed,
	}
}

// ObserveJobDuration records the duration of a finished import job.
func (p *PipelineMetrics) ObserveJobDuration(supplier string, duration time.Duration) {
	if p == nil || p.jobDuration == nil {
		return
	}
	p.jobDuration.WithLabelValues(normalizeLabel(supplier)).Observe(duration.Seconds())
}

// IncJobCompleted increments the completed-jobs counter for the supplier.
func (p *PipelineMetrics) IncJobCompleted(supplier string) {
	if p == nil || p.jobsCompleted == nil {
		return
	}
	p.jobsCompleted.WithLabelValues(normalizeLabel(supplier)).Inc()
}

// IncJobFailed increments the failed-jobs counter for the supplier.
func (p *PipelineMetrics) IncJobFailed(supplier string) {
	if p == nil || p.jobsFailed == nil {
		return
	}
	p.jobsFailed.WithLabelValues(normalizeLabel(supplier)).Inc()
}

// IncSupplierRequest counts one outbound supplier request with its outcome.
func (p *PipelineMetrics) IncSupplierRequest(supplier, outcome string) {
	if p == nil || p.supplierRequests == nil {
		return
	}
	p.supplierRequests.WithLabelValues(normalizeLabel(supplier), normalizeLabel(outcome)).Inc()
}

// IncImageDownloaded counts a validated image download.
func (p *PipelineMetrics) IncImageDownloaded() {
	if p == nil || p.imagesDownloaded == nil {
		return
	}
	p.imagesDownloaded.Inc()
}

// IncImageFailed counts a skipped or rejected image download.
func (p *PipelineMetrics) IncImageFailed() {
	if p == nil || p.imagesFailed == nil {
		return
	}
	p.imagesFailed.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
