package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-batch/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// CoordinatorSnapshotProvider provides current coordinator stats snapshots.
// *core.Coordinator[T] satisfies it for every T.
type CoordinatorSnapshotProvider interface {
	Stats() core.CoordinatorStats
}

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports coordinator/pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	coordinatorsMu sync.RWMutex
	coordinators   map[string]CoordinatorSnapshotProvider

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	coordinatorTotal     *prom.GaugeVec
	coordinatorCompleted *prom.GaugeVec
	coordinatorPending   *prom.GaugeVec
	coordinatorChunks    *prom.GaugeVec
	coordinatorFinished  *prom.GaugeVec
	coordinatorFaults    *prom.GaugeVec

	poolQueued  *prom.GaugeVec
	poolActive  *prom.GaugeVec
	poolWorkers *prom.GaugeVec
	poolRunning *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "taskbatch",
			Name:      name,
			Help:      help,
		}, labels)
	}

	p := &SnapshotPoller{
		interval:     interval,
		coordinators: make(map[string]CoordinatorSnapshotProvider),
		pools:        make(map[string]PoolSnapshotProvider),

		coordinatorTotal:     gauge("coordinator_tasks", "Registered tasks per coordinator.", "coordinator", "mode"),
		coordinatorCompleted: gauge("coordinator_completed", "Tasks that reported a result per coordinator.", "coordinator", "mode"),
		coordinatorPending:   gauge("coordinator_pending", "Tasks still awaiting a result per coordinator.", "coordinator", "mode"),
		coordinatorChunks:    gauge("coordinator_chunks", "Pool chunks per coordinator (0 when not partitioned).", "coordinator", "mode"),
		coordinatorFinished:  gauge("coordinator_finished", "Coordinator terminal state (1=finished, 0=running or idle).", "coordinator", "mode"),
		coordinatorFaults:    gauge("coordinator_faults", "Recorded faults per coordinator.", "coordinator", "mode"),

		poolQueued:  gauge("pool_queued", "Queued jobs per pool.", "pool"),
		poolActive:  gauge("pool_active", "Active jobs per pool.", "pool"),
		poolWorkers: gauge("pool_workers", "Worker count per pool.", "pool"),
		poolRunning: gauge("pool_running", "Pool running state (1=running, 0=stopped).", "pool"),
	}

	for _, c := range []**prom.GaugeVec{
		&p.coordinatorTotal, &p.coordinatorCompleted, &p.coordinatorPending,
		&p.coordinatorChunks, &p.coordinatorFinished, &p.coordinatorFaults,
		&p.poolQueued, &p.poolActive, &p.poolWorkers, &p.poolRunning,
	} {
		registered, err := registerCollector(reg, *c)
		if err != nil {
			return nil, err
		}
		*c = registered
	}

	return p, nil
}

// AddCoordinator adds or replaces a coordinator snapshot provider by name.
func (p *SnapshotPoller) AddCoordinator(name string, provider CoordinatorSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "coordinator")
	p.coordinatorsMu.Lock()
	p.coordinators[name] = provider
	p.coordinatorsMu.Unlock()
}

// RemoveCoordinator stops exporting a coordinator. Its last values remain
// in the gauges until overwritten.
func (p *SnapshotPoller) RemoveCoordinator(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "coordinator")
	p.coordinatorsMu.Lock()
	delete(p.coordinators, name)
	p.coordinatorsMu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

// CollectOnce exports one snapshot immediately.
func (p *SnapshotPoller) CollectOnce() {
	if p == nil {
		return
	}
	p.collectOnce()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.coordinatorsMu.RLock()
	for name, provider := range p.coordinators {
		stats := provider.Stats()
		mode := stats.Mode.String()
		p.coordinatorTotal.WithLabelValues(name, mode).Set(float64(stats.Total))
		p.coordinatorCompleted.WithLabelValues(name, mode).Set(float64(stats.Completed))
		p.coordinatorPending.WithLabelValues(name, mode).Set(float64(stats.Pending()))
		p.coordinatorChunks.WithLabelValues(name, mode).Set(float64(stats.Chunks))
		p.coordinatorFaults.WithLabelValues(name, mode).Set(float64(stats.Faults))
		p.coordinatorFinished.WithLabelValues(name, mode).Set(boolGauge(stats.Finished))
	}
	p.coordinatorsMu.RUnlock()

	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
	}
	p.poolsMu.RUnlock()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
