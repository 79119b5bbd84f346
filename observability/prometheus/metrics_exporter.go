package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-task-batch/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds  *prom.HistogramVec
	batchDurationSeconds *prom.HistogramVec
	batchFinishedTotal   *prom.CounterVec
	chunkSize            *prom.HistogramVec
	taskPanicTotal       *prom.CounterVec
	faultTotal           *prom.CounterVec
	jobRejectedTotal     *prom.CounterVec
	queueDepth           *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskbatch"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	taskDurationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Time from dispatching a task to its completion callback.",
		Buckets:   buckets,
	}, []string{"coordinator", "mode"})
	batchDurationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_duration_seconds",
		Help:      "Time from starting a coordinator to its terminal state.",
		Buckets:   buckets,
	}, []string{"coordinator", "mode", "outcome"})
	batchFinishedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "batch_finished_total",
		Help:      "Total number of coordinators that reached their terminal state.",
	}, []string{"coordinator", "mode", "outcome"})
	chunkSizeVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "chunk_size",
		Help:      "Number of tasks fanned out per pool chunk.",
		Buckets:   prom.LinearBuckets(5, 5, 6),
	}, []string{"coordinator"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"coordinator"})
	faultVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "fault_total",
		Help:      "Total number of coordinator faults by kind.",
	}, []string{"coordinator", "kind"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "job_rejected_total",
		Help:      "Total number of host jobs rejected by a pool.",
	}, []string{"pool", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current host pool queue depth.",
	}, []string{"pool"})

	var err error
	if taskDurationVec, err = registerCollector(reg, taskDurationVec); err != nil {
		return nil, err
	}
	if batchDurationVec, err = registerCollector(reg, batchDurationVec); err != nil {
		return nil, err
	}
	if batchFinishedVec, err = registerCollector(reg, batchFinishedVec); err != nil {
		return nil, err
	}
	if chunkSizeVec, err = registerCollector(reg, chunkSizeVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if faultVec, err = registerCollector(reg, faultVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds:  taskDurationVec,
		batchDurationSeconds: batchDurationVec,
		batchFinishedTotal:   batchFinishedVec,
		chunkSize:            chunkSizeVec,
		taskPanicTotal:       panicVec,
		faultTotal:           faultVec,
		jobRejectedTotal:     rejectedVec,
		queueDepth:           queueDepthVec,
	}, nil
}

// RecordTaskDuration records dispatch-to-callback latency.
func (m *MetricsExporter) RecordTaskDuration(coordinator string, mode core.Mode, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(coordinator, "unknown"), mode.String()).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(coordinator string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(coordinator, "unknown")).Inc()
}

// RecordBatchFinished records a terminal transition.
func (m *MetricsExporter) RecordBatchFinished(coordinator string, mode core.Mode, tasks int, aborted bool, duration time.Duration) {
	if m == nil {
		return
	}
	name := normalizeLabel(coordinator, "unknown")
	outcome := outcomeLabel(aborted)
	m.batchFinishedTotal.WithLabelValues(name, mode.String(), outcome).Inc()
	m.batchDurationSeconds.WithLabelValues(name, mode.String(), outcome).Observe(duration.Seconds())
}

// RecordChunkStarted records the size of a pool fan-out.
func (m *MetricsExporter) RecordChunkStarted(coordinator string, size int) {
	if m == nil {
		return
	}
	m.chunkSize.WithLabelValues(normalizeLabel(coordinator, "unknown")).Observe(float64(size))
}

// RecordFault records coordinator fault events.
func (m *MetricsExporter) RecordFault(coordinator string, kind string) {
	if m == nil {
		return
	}
	m.faultTotal.WithLabelValues(normalizeLabel(coordinator, "unknown"), normalizeLabel(kind, "unknown")).Inc()
}

// RecordQueueDepth records host queue depth.
func (m *MetricsExporter) RecordQueueDepth(owner string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(owner, "unknown")).Set(float64(depth))
}

// RecordTaskRejected records host job rejection events.
func (m *MetricsExporter) RecordTaskRejected(owner string, reason string) {
	if m == nil {
		return
	}
	m.jobRejectedTotal.WithLabelValues(normalizeLabel(owner, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func outcomeLabel(aborted bool) string {
	if aborted {
		return "aborted"
	}
	return "completed"
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
