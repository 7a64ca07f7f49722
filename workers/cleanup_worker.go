package workers

import (
	"context"
	"sync"
	"time"

	"foodshare-notify/models"

	"github.com/sirupsen/logrus"
)

type stalePruner interface {
	PruneStale(ctx context.Context, before time.Time) (int64, error)
}

// CleanupWorker periodically removes device tokens that no gateway has
// confirmed for a long time.
type CleanupWorker struct {
	devices stalePruner

	// Worker configuration
	config CleanupWorkerConfig

	// Worker state
	isRunning bool
	mutex     sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	stats      models.CleanupStats
	statsMutex sync.RWMutex
}

type CleanupWorkerConfig struct {
	TokenStaleDays int           `json:"tokenStaleDays"`
	Interval       time.Duration `json:"interval"`
	TaskTimeout    time.Duration `json:"taskTimeout"`
}

func NewCleanupWorker(devices stalePruner, config CleanupWorkerConfig) *CleanupWorker {
	if config.TokenStaleDays <= 0 {
		config.TokenStaleDays = 60
	}
	if config.Interval <= 0 {
		config.Interval = 6 * time.Hour
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &CleanupWorker{
		devices: devices,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (cw *CleanupWorker) Start() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if cw.isRunning {
		return nil
	}
	cw.isRunning = true

	logrus.Infof("Starting Cleanup Worker, pruning tokens unconfirmed for %d days every %v",
		cw.config.TokenStaleDays, cw.config.Interval)

	cw.wg.Add(1)
	go cw.scheduler()

	return nil
}

func (cw *CleanupWorker) Stop() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if !cw.isRunning {
		return nil
	}

	logrus.Info("Stopping Cleanup Worker...")

	cw.cancel()
	cw.isRunning = false
	cw.wg.Wait()

	logrus.Info("Cleanup Worker stopped successfully")
	return nil
}

func (cw *CleanupWorker) scheduler() {
	defer cw.wg.Done()

	ticker := time.NewTicker(cw.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := cw.RunOnce(cw.ctx); err != nil {
				logrus.WithError(err).Error("Stale token cleanup failed")
			}
		case <-cw.ctx.Done():
			return
		}
	}
}

// RunOnce prunes every token last confirmed before the staleness cutoff.
func (cw *CleanupWorker) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, cw.config.TaskTimeout)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -cw.config.TokenStaleDays)
	pruned, err := cw.devices.PruneStale(ctx, cutoff)

	cw.statsMutex.Lock()
	cw.stats.Runs++
	cw.stats.LastRunTime = time.Now()
	if err == nil {
		cw.stats.Pruned += pruned
	}
	cw.statsMutex.Unlock()

	if err != nil {
		return 0, err
	}

	if pruned > 0 {
		logrus.WithField("pruned", pruned).Info("Pruned stale device tokens")
	}
	return pruned, nil
}

func (cw *CleanupWorker) GetStats() models.CleanupStats {
	cw.statsMutex.RLock()
	defer cw.statsMutex.RUnlock()
	return cw.stats
}
