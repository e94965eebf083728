package pubworker

import (
	"context"
	"sync"

	coreconfig "github.com/AzielCF/postpilot/core/config"
	"github.com/sirupsen/logrus"
)

var (
	globalPool     *PublishWorkerPool
	globalPoolOnce sync.Once
	globalPoolCtx  context.Context
	globalCancel   context.CancelFunc
)

// GetGlobalPool returns the singleton publish worker pool
func GetGlobalPool() *PublishWorkerPool {
	globalPoolOnce.Do(func() {
		globalPoolCtx, globalCancel = context.WithCancel(context.Background())

		size := coreconfig.Global.WorkerPool.Size
		if size <= 0 {
			size = 6
		}

		queue := coreconfig.Global.WorkerPool.QueueSize
		if queue <= 0 {
			queue = 250
		}

		globalPool = NewPublishWorkerPool(size, queue)
		globalPool.Start(globalPoolCtx)
		logrus.Infof("[PUB_WORKER_POOL] Global instance started with %d workers and queue size %d", size, queue)
	})
	return globalPool
}

// StopGlobalPool stops the singleton pool
func StopGlobalPool() {
	if globalCancel != nil {
		globalCancel()
	}
	if globalPool != nil {
		globalPool.Stop()
	}
}

// GetGlobalStats returns stats from the global pool
func GetGlobalStats() PoolStats {
	return GetGlobalPool().GetStats()
}
