package workers

import (
	"context"
	"sync"
	"time"

	"foodshare-notify/interfaces"
	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/sirupsen/logrus"
)

// DispatchWorker dispatches intents released by grouping window expiry on a
// small pool of goroutines.
type DispatchWorker struct {
	dispatcher interfaces.IntentDispatcher

	// Worker configuration
	config DispatchWorkerConfig

	// Processing channels
	queue chan models.NotificationIntent

	// Worker state
	isRunning bool
	mutex     sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	stats      models.DispatchStats
	statsMutex sync.RWMutex
}

type DispatchWorkerConfig struct {
	WorkerCount       int           `json:"workerCount"`
	QueueSize         int           `json:"queueSize"`
	ProcessingTimeout time.Duration `json:"processingTimeout"`
}

func NewDispatchWorker(dispatcher interfaces.IntentDispatcher, config DispatchWorkerConfig) *DispatchWorker {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.ProcessingTimeout <= 0 {
		config.ProcessingTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &DispatchWorker{
		dispatcher: dispatcher,
		config:     config,
		queue:      make(chan models.NotificationIntent, config.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (dw *DispatchWorker) Start() error {
	dw.mutex.Lock()
	defer dw.mutex.Unlock()

	if dw.isRunning {
		return nil
	}

	dw.isRunning = true

	logrus.Infof("Starting Dispatch Worker with %d workers", dw.config.WorkerCount)

	for i := 0; i < dw.config.WorkerCount; i++ {
		dw.wg.Add(1)
		go dw.worker(i)
	}

	return nil
}

// Stop lets the workers drain the queue before returning.
func (dw *DispatchWorker) Stop() error {
	dw.mutex.Lock()
	if !dw.isRunning {
		dw.mutex.Unlock()
		return nil
	}
	dw.isRunning = false
	close(dw.queue)
	dw.mutex.Unlock()

	logrus.Info("Stopping Dispatch Worker...")

	dw.wg.Wait()
	dw.cancel()

	logrus.Info("Dispatch Worker stopped successfully")
	return nil
}

// Submit queues intents flushed by the grouping aggregator. Intents that do
// not fit are logged and dropped.
func (dw *DispatchWorker) Submit(intents []models.NotificationIntent) {
	for _, intent := range intents {
		if err := dw.SubmitIntent(intent); err != nil {
			logrus.WithFields(logrus.Fields{
				"intent_id":    intent.ID,
				"recipient_id": intent.RecipientID,
				"category":     intent.Category,
			}).WithError(err).Error("Dropped grouped notification")
		}
	}
}

func (dw *DispatchWorker) SubmitIntent(intent models.NotificationIntent) error {
	dw.mutex.RLock()
	defer dw.mutex.RUnlock()

	if !dw.isRunning {
		return utils.NewServiceError("WORKER_STOPPED", "Dispatch worker is not running")
	}

	select {
	case dw.queue <- intent:
		dw.statsMutex.Lock()
		dw.stats.Queued++
		dw.statsMutex.Unlock()
		return nil
	default:
		return utils.NewServiceError("QUEUE_FULL", "Dispatch queue is full")
	}
}

func (dw *DispatchWorker) worker(workerID int) {
	defer dw.wg.Done()

	logrus.Debugf("Dispatch worker %d started", workerID)

	for intent := range dw.queue {
		dw.process(intent)
	}

	logrus.Debugf("Dispatch worker %d stopping", workerID)
}

func (dw *DispatchWorker) process(intent models.NotificationIntent) {
	ctx, cancel := context.WithTimeout(dw.ctx, dw.config.ProcessingTimeout)
	defer cancel()

	result := dw.dispatcher.Dispatch(ctx, intent)

	dw.statsMutex.Lock()
	defer dw.statsMutex.Unlock()

	dw.stats.Processed++
	dw.stats.LastRunTime = time.Now()
	if result.Err != nil {
		dw.stats.Failed++
	} else if result.Delivered() {
		dw.stats.Delivered++
	}
}

func (dw *DispatchWorker) GetStats() models.DispatchStats {
	dw.statsMutex.RLock()
	defer dw.statsMutex.RUnlock()

	stats := dw.stats
	stats.QueueLength = len(dw.queue)
	return stats
}
