package pubworker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// PublishJob is one unit of publish work for a single post instance.
type PublishJob struct {
	ParentID   string
	InstanceID string
	Handler    func(ctx context.Context) error
}

// PoolStats exposes live pool metrics.
type PoolStats struct {
	NumWorkers      int            `json:"num_workers"`
	QueueSize       int            `json:"queue_size"`
	ActiveWorkers   int            `json:"active_workers"`
	TotalDispatched int64          `json:"total_dispatched"`
	TotalProcessed  int64          `json:"total_processed"`
	TotalDropped    int64          `json:"total_dropped"`
	TotalErrors     int64          `json:"total_errors"`
	WorkerStats     []WorkerStats  `json:"worker_stats"`
	ActiveSeries    map[string]int `json:"active_series"` // parentID -> worker_id
}

// WorkerStats holds per-worker metrics.
type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

type activeSeriesEntry struct {
	workerID  int
	updatedAt time.Time
}

// PublishWorkerPool runs publish jobs on a fixed set of workers. Jobs are
// sharded by ParentID, so two instances of the same series never publish
// concurrently and always in dispatch order.
type PublishWorkerPool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32
	stopCh     chan struct{}

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64
	activeSeriesMu  sync.RWMutex
	activeSeries    map[string]activeSeriesEntry
	startTime       time.Time

	// Hooks for external monitoring.
	OnWorkerStart func(workerID int, parentID string)
	OnWorkerEnd   func(workerID int, parentID string)
}

type worker struct {
	id            int
	jobQueue      chan PublishJob
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32
	jobsProcessed int64
	pool          *PublishWorkerPool
}

func NewPublishWorkerPool(numWorkers, queueSize int) *PublishWorkerPool {
	if numWorkers <= 0 {
		numWorkers = 8
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	return &PublishWorkerPool{
		numWorkers:   numWorkers,
		queueSize:    queueSize,
		workers:      make([]*worker, numWorkers),
		activeSeries: make(map[string]activeSeriesEntry),
		stopCh:       make(chan struct{}),
		startTime:    time.Now(),
	}
}

// Start launches all workers plus a janitor that evicts stale series entries.
func (p *PublishWorkerPool) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				now := time.Now()
				p.activeSeriesMu.Lock()
				for k, v := range p.activeSeries {
					if !v.updatedAt.IsZero() && now.Sub(v.updatedAt) > 2*time.Second {
						delete(p.activeSeries, k)
					}
				}
				p.activeSeriesMu.Unlock()
			}
		}
	}()

	for i := 0; i < p.numWorkers; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:       i,
			jobQueue: make(chan PublishJob, p.queueSize),
			ctx:      workerCtx,
			cancel:   cancel,
			pool:     p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}

	logrus.Infof("[PUB_WORKER_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// TryDispatch enqueues a job on its parent's shard without blocking and
// reports whether it was accepted. A full queue means backpressure: the
// instance stays in dispatching and the caller decides what to do.
func (p *PublishWorkerPool) TryDispatch(job PublishJob) bool {
	if atomic.LoadInt32(&p.stopped) == 1 {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	shard := p.shardForParent(job.ParentID)
	atomic.AddInt64(&p.totalDispatched, 1)

	p.activeSeriesMu.Lock()
	p.activeSeries[job.ParentID] = activeSeriesEntry{workerID: shard, updatedAt: time.Now()}
	p.activeSeriesMu.Unlock()

	sent := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].jobQueue <- job:
			return true
		default:
			return false
		}
	}()

	if sent {
		return true
	}
	p.activeSeriesMu.Lock()
	delete(p.activeSeries, job.ParentID)
	p.activeSeriesMu.Unlock()

	atomic.AddInt64(&p.totalDropped, 1)
	logrus.Warnf("[PUB_WORKER_POOL] Worker %d queue full (or stopped), dropping job for instance %s",
		shard, job.InstanceID)
	return false
}

// Dispatch enqueues a job, discarding it if the shard queue is full.
func (p *PublishWorkerPool) Dispatch(job PublishJob) {
	_ = p.TryDispatch(job)
}

// Stop shuts the pool down gracefully, letting workers drain their queues.
func (p *PublishWorkerPool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		close(p.stopCh)
		logrus.Info("[PUB_WORKER_POOL] Stopping workers...")

		for _, w := range p.workers {
			w.cancel()
			close(w.jobQueue)
		}

		p.wg.Wait()

		logrus.Info("[PUB_WORKER_POOL] All workers stopped")
	})
}

// shardForParent maps a series to its worker with a consistent hash.
func (p *PublishWorkerPool) shardForParent(parentID string) int {
	h := fnv.New32a()
	h.Write([]byte(parentID))
	return int(h.Sum32() % uint32(p.numWorkers))
}

// GetStats returns a live snapshot of pool metrics.
func (p *PublishWorkerPool) GetStats() PoolStats {
	workerStats := make([]WorkerStats, len(p.workers))
	activeWorkers := 0

	for i, w := range p.workers {
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}

		workerStats[i] = WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		}
	}

	now := time.Now()
	p.activeSeriesMu.Lock()
	activeSnapshot := make(map[string]int, len(p.activeSeries))
	for k, v := range p.activeSeries {
		if !v.updatedAt.IsZero() && now.Sub(v.updatedAt) > 2*time.Second {
			delete(p.activeSeries, k)
			continue
		}
		activeSnapshot[k] = v.workerID
	}
	p.activeSeriesMu.Unlock()

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		WorkerStats:     workerStats,
		ActiveSeries:    activeSnapshot,
	}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	logrus.Debugf("[PUB_WORKER_POOL] Worker %d started", w.id)

	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				logrus.Debugf("[PUB_WORKER_POOL] Worker %d shutting down", w.id)
				return
			}

			func() {
				if w.pool.OnWorkerStart != nil {
					w.pool.OnWorkerStart(w.id, job.ParentID)
				}
				atomic.StoreInt32(&w.isProcessing, 1)
				defer func() {
					if r := recover(); r != nil {
						atomic.AddInt64(&w.pool.totalErrors, 1)
						logrus.Errorf("[PUB_WORKER_POOL] Worker %d panic for instance %s: %v", w.id, job.InstanceID, r)
					}
					if w.pool.OnWorkerEnd != nil {
						w.pool.OnWorkerEnd(w.id, job.ParentID)
					}
					atomic.StoreInt32(&w.isProcessing, 0)
					atomic.AddInt64(&w.jobsProcessed, 1)
					atomic.AddInt64(&w.pool.totalProcessed, 1)
				}()

				if err := job.Handler(w.ctx); err != nil {
					atomic.AddInt64(&w.pool.totalErrors, 1)
					logrus.WithError(err).Errorf("[PUB_WORKER_POOL] Worker %d job failed for instance %s",
						w.id, job.InstanceID)
				}
			}()

		case <-w.ctx.Done():
			logrus.Debugf("[PUB_WORKER_POOL] Worker %d context cancelled, draining queue...", w.id)
			w.drainQueue()
			return
		}
	}
}

// drainQueue finishes pending jobs before shutdown.
func (w *worker) drainQueue() {
	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				return
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						atomic.AddInt64(&w.pool.totalErrors, 1)
						logrus.Errorf("[PUB_WORKER_POOL] Worker %d drain panic: %v", w.id, r)
					}
				}()
				if err := job.Handler(w.ctx); err != nil {
					logrus.WithError(err).Errorf("[PUB_WORKER_POOL] Worker %d drain job failed", w.id)
				}
			}()
		default:
			return
		}
	}
}
