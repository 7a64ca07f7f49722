package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/sirupsen/logrus"
)

type GroupingConfig struct {
	Window            time.Duration
	CollapseThreshold int
	FlushSize         int
	MaxEntityRefs     int
}

func DefaultGroupingConfig() GroupingConfig {
	return GroupingConfig{
		Window:            5 * time.Minute,
		CollapseThreshold: 3,
		FlushSize:         5,
		MaxEntityRefs:     5,
	}
}

// FlushFunc receives intents released by a window expiry.
type FlushFunc func(intents []models.NotificationIntent)

type groupBucket struct {
	mu        sync.Mutex
	key       string
	startedAt time.Time
	intents   []models.NotificationIntent
	closed    bool
	timer     *time.Timer
}

// GroupingAggregator buffers non-urgent intents per (recipient, category) and
// releases them either individually or as one collapsed intent. The bucket
// map lock is only held to find or create a bucket; adds and flushes on a
// bucket hold that bucket's own lock.
type GroupingAggregator struct {
	cfg     GroupingConfig
	sink    FlushFunc
	metrics *Metrics

	mu      sync.Mutex
	buckets map[string]*groupBucket

	stats      models.GroupingStats
	statsMutex sync.RWMutex
}

func NewGroupingAggregator(cfg GroupingConfig, sink FlushFunc, metrics *Metrics) *GroupingAggregator {
	defaults := DefaultGroupingConfig()
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.CollapseThreshold <= 1 {
		cfg.CollapseThreshold = defaults.CollapseThreshold
	}
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = defaults.FlushSize
	}
	if cfg.MaxEntityRefs <= 0 {
		cfg.MaxEntityRefs = defaults.MaxEntityRefs
	}

	return &GroupingAggregator{
		cfg:     cfg,
		sink:    sink,
		metrics: metrics,
		buckets: make(map[string]*groupBucket),
	}
}

// GroupingKey identifies the bucket an intent belongs to.
func GroupingKey(recipientID string, category models.EventCategory) string {
	return recipientID + ":" + string(category)
}

// Add returns the intents ready for dispatch now. High priority intents come
// straight back; others are buffered and nil is returned until their bucket
// fills up.
func (a *GroupingAggregator) Add(intent models.NotificationIntent) []models.NotificationIntent {
	if intent.Priority == models.PriorityHigh {
		a.incr(func(s *models.GroupingStats) { s.Bypassed++ })
		return []models.NotificationIntent{intent}
	}

	key := intent.GroupingKey
	if key == "" {
		key = GroupingKey(intent.RecipientID, intent.Category)
		intent.GroupingKey = key
	}

	for {
		bucket := a.bucketFor(key)

		bucket.mu.Lock()
		if bucket.closed {
			// flushed between lookup and lock, resolve a fresh bucket
			bucket.mu.Unlock()
			continue
		}

		if containsCollapseID(bucket.intents, intent.CollapseID) {
			bucket.mu.Unlock()
			a.incr(func(s *models.GroupingStats) { s.Deduplicated++ })
			return nil
		}

		bucket.intents = append(bucket.intents, intent)
		if len(bucket.intents) < a.cfg.FlushSize {
			bucket.mu.Unlock()
			a.incr(func(s *models.GroupingStats) { s.Buffered++ })
			return nil
		}

		buffered := a.closeLocked(bucket)
		bucket.mu.Unlock()
		return a.release(buffered)
	}
}

func (a *GroupingAggregator) bucketFor(key string) *groupBucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	if bucket, ok := a.buckets[key]; ok {
		return bucket
	}

	bucket := &groupBucket{key: key, startedAt: time.Now()}
	bucket.timer = time.AfterFunc(a.cfg.Window, func() { a.expire(bucket) })
	a.buckets[key] = bucket
	return bucket
}

func (a *GroupingAggregator) expire(bucket *groupBucket) {
	bucket.mu.Lock()
	if bucket.closed {
		bucket.mu.Unlock()
		return
	}
	buffered := a.closeLocked(bucket)
	bucket.mu.Unlock()

	ready := a.release(buffered)
	if len(ready) > 0 && a.sink != nil {
		a.sink(ready)
	}
}

// closeLocked must be called with bucket.mu held.
func (a *GroupingAggregator) closeLocked(bucket *groupBucket) []models.NotificationIntent {
	bucket.closed = true
	if bucket.timer != nil {
		bucket.timer.Stop()
	}

	a.mu.Lock()
	if a.buckets[bucket.key] == bucket {
		delete(a.buckets, bucket.key)
	}
	a.mu.Unlock()

	buffered := bucket.intents
	bucket.intents = nil
	return buffered
}

// release turns a flushed bucket into dispatchable intents.
func (a *GroupingAggregator) release(buffered []models.NotificationIntent) []models.NotificationIntent {
	if len(buffered) == 0 {
		return nil
	}

	a.incr(func(s *models.GroupingStats) { s.Flushed++ })

	if len(buffered) < a.cfg.CollapseThreshold {
		return buffered
	}

	a.incr(func(s *models.GroupingStats) { s.Collapsed += int64(len(buffered)) })
	a.metrics.IntentsCollapsed(buffered[0].Category, len(buffered))

	collapsed := a.collapse(buffered)
	logrus.WithFields(logrus.Fields{
		"recipient_id": collapsed.RecipientID,
		"category":     collapsed.Category,
		"total":        collapsed.TotalCount,
	}).Debug("Collapsed grouped notifications")

	return []models.NotificationIntent{collapsed}
}

func (a *GroupingAggregator) collapse(buffered []models.NotificationIntent) models.NotificationIntent {
	newestFirst := make([]models.NotificationIntent, len(buffered))
	copy(newestFirst, buffered)
	sort.SliceStable(newestFirst, func(i, j int) bool {
		return newestFirst[i].CreatedAt.After(newestFirst[j].CreatedAt)
	})

	refCount := len(newestFirst)
	if refCount > a.cfg.MaxEntityRefs {
		refCount = a.cfg.MaxEntityRefs
	}

	refs := make([]string, 0, refCount)
	titles := make([]string, 0, refCount)
	priority := models.PriorityLow
	for i, intent := range newestFirst {
		if intent.Priority.Rank() > priority.Rank() {
			priority = intent.Priority
		}
		if i < refCount {
			refs = append(refs, intent.EntityRef)
			if intent.Title != "" {
				titles = append(titles, intent.Title)
			}
		}
	}

	newest := newestFirst[0]
	total := len(buffered)

	return models.NotificationIntent{
		ID:          utils.GenerateUUID(),
		RecipientID: newest.RecipientID,
		Category:    newest.Category,
		Priority:    priority,
		Title:       collapsedTitle(newest.Category, total),
		Body:        collapsedBody(titles, total),
		GroupingKey: newest.GroupingKey,
		CollapseID:  "group:" + string(newest.Category),
		EntityRef:   "feed/" + string(newest.Category),
		EntityRefs:  refs,
		TotalCount:  total,
		CreatedAt:   newest.CreatedAt,
	}
}

func collapsedTitle(category models.EventCategory, total int) string {
	switch category {
	case models.CategoryNewListing:
		return fmt.Sprintf("%d new listings near you", total)
	case models.CategoryListingExpiring:
		return fmt.Sprintf("%d listings are expiring soon", total)
	case models.CategoryReservationUpdated:
		return fmt.Sprintf("%d reservation updates", total)
	default:
		return fmt.Sprintf("%d new notifications", total)
	}
}

func collapsedBody(titles []string, total int) string {
	if len(titles) == 0 {
		return ""
	}

	shown := titles
	if len(shown) > 3 {
		shown = shown[:3]
	}
	body := strings.Join(shown, ", ")
	if more := total - len(shown); more > 0 {
		body += fmt.Sprintf(" and %d more", more)
	}
	return utils.TruncateString(body, 180)
}

func containsCollapseID(intents []models.NotificationIntent, collapseID string) bool {
	if collapseID == "" {
		return false
	}
	for _, intent := range intents {
		if intent.CollapseID == collapseID {
			return true
		}
	}
	return false
}

// FlushAll releases every open bucket to the sink, used on shutdown.
func (a *GroupingAggregator) FlushAll() {
	a.mu.Lock()
	buckets := make([]*groupBucket, 0, len(a.buckets))
	for _, bucket := range a.buckets {
		buckets = append(buckets, bucket)
	}
	a.mu.Unlock()

	for _, bucket := range buckets {
		a.expire(bucket)
	}
}

func (a *GroupingAggregator) PendingBuckets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buckets)
}

func (a *GroupingAggregator) Stats() models.GroupingStats {
	a.statsMutex.RLock()
	stats := a.stats
	a.statsMutex.RUnlock()

	stats.PendingBuckets = a.PendingBuckets()
	return stats
}

func (a *GroupingAggregator) incr(update func(s *models.GroupingStats)) {
	a.statsMutex.Lock()
	update(&a.stats)
	a.statsMutex.Unlock()
}
