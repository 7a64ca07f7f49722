package workers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"foodshare-notify/interfaces"
	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type EventConsumerConfig struct {
	Brokers        []string      `json:"brokers"`
	Topic          string        `json:"topic"`
	GroupID        string        `json:"groupId"`
	HandleTimeout  time.Duration `json:"handleTimeout"`
	InitialBackoff time.Duration `json:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff"`
}

// EventConsumer reads domain events from Kafka and hands them to the
// notification pipeline. An offset is committed once the event has been
// handled or rejected as malformed. Events whose recipients cannot be
// resolved are redelivered in place with exponential backoff.
type EventConsumer struct {
	reader  messageReader
	handler interfaces.EventHandler
	config  EventConsumerConfig

	isRunning bool
	mutex     sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats      models.ConsumerStats
	statsMutex sync.RWMutex
}

func NewEventConsumer(handler interfaces.EventHandler, config EventConsumerConfig) *EventConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		GroupID:     config.GroupID,
		Topic:       config.Topic,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.LastOffset,
	})
	return newEventConsumer(reader, handler, config)
}

func newEventConsumer(reader messageReader, handler interfaces.EventHandler, config EventConsumerConfig) *EventConsumer {
	if config.HandleTimeout <= 0 {
		config.HandleTimeout = 30 * time.Second
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = 30 * time.Second
	}

	logrus.WithFields(logrus.Fields{
		"brokers": config.Brokers,
		"topic":   config.Topic,
		"group":   config.GroupID,
	}).Info("Kafka event consumer created")

	return &EventConsumer{
		reader:  reader,
		handler: handler,
		config:  config,
	}
}

func (ec *EventConsumer) Start(ctx context.Context) error {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()

	if ec.isRunning {
		return nil
	}
	ec.isRunning = true

	ctx, ec.cancel = context.WithCancel(ctx)

	ec.wg.Add(1)
	go ec.run(ctx)

	logrus.Infof("Started consuming domain events from topic %s", ec.config.Topic)
	return nil
}

func (ec *EventConsumer) Stop() error {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()

	if !ec.isRunning {
		return nil
	}
	ec.isRunning = false

	logrus.Info("Stopping Kafka event consumer...")

	ec.cancel()
	ec.wg.Wait()

	if err := ec.reader.Close(); err != nil {
		return err
	}

	logrus.Info("Kafka event consumer stopped")
	return nil
}

func (ec *EventConsumer) run(ctx context.Context) {
	defer ec.wg.Done()

	for {
		msg, err := ec.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.WithError(err).Error("Failed to fetch message from Kafka")
			if !sleepCtx(ctx, ec.config.InitialBackoff) {
				return
			}
			continue
		}

		if !ec.processMessage(ctx, msg) {
			return
		}
	}
}

// processMessage returns false only when ctx ended before the message could be
// settled; the uncommitted offset is then picked up again after restart.
func (ec *EventConsumer) processMessage(ctx context.Context, msg kafka.Message) bool {
	ec.statsMutex.Lock()
	ec.stats.Consumed++
	ec.stats.LastMessage = time.Now()
	ec.statsMutex.Unlock()

	log := logrus.WithFields(logrus.Fields{
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var event models.DomainEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.WithError(err).Error("Failed to unmarshal domain event")
		ec.incrRejected()
		return ec.commit(ctx, msg)
	}

	backoff := ec.config.InitialBackoff
	for {
		handleCtx, cancel := context.WithTimeout(ctx, ec.config.HandleTimeout)
		_, err := ec.handler.HandleEvent(handleCtx, event)
		cancel()

		switch {
		case err == nil:
			return ec.commit(ctx, msg)
		case utils.IsResolutionUnavailable(err):
			log.WithError(err).WithField("event_id", event.ID).
				Warnf("Recipient resolution unavailable, redelivering in %v", backoff)
			ec.statsMutex.Lock()
			ec.stats.Redelivered++
			ec.statsMutex.Unlock()
			if !sleepCtx(ctx, backoff) {
				return false
			}
			backoff *= 2
			if backoff > ec.config.MaxBackoff {
				backoff = ec.config.MaxBackoff
			}
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return false
		default:
			log.WithError(err).WithField("event_id", event.ID).Error("Rejected domain event")
			ec.incrRejected()
			return ec.commit(ctx, msg)
		}
	}
}

func (ec *EventConsumer) commit(ctx context.Context, msg kafka.Message) bool {
	if err := ec.reader.CommitMessages(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return false
		}
		logrus.WithError(err).WithField("offset", msg.Offset).Error("Failed to commit Kafka offset")
		return true
	}

	ec.statsMutex.Lock()
	ec.stats.Committed++
	ec.statsMutex.Unlock()
	return true
}

func (ec *EventConsumer) incrRejected() {
	ec.statsMutex.Lock()
	ec.stats.Rejected++
	ec.statsMutex.Unlock()
}

func (ec *EventConsumer) GetStats() models.ConsumerStats {
	ec.statsMutex.RLock()
	defer ec.statsMutex.RUnlock()
	return ec.stats
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
