// config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Environment string
	Port        string
	DatabaseURL string
	RedisURL    string

	// Shared secret for event-source tokens
	EventSourceSecret string

	// Firebase Config
	FirebaseCredentialsPath string
	FirebaseProjectID       string

	// APNs Config
	APNSKeyPath    string
	APNSKeyID      string
	APNSTeamID     string
	APNSBundleID   string
	APNSProduction bool

	// Kafka Config
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Pipeline tuning
	GroupWindow            time.Duration
	GroupCollapseThreshold int
	GroupFlushSize         int
	NearbySearchRadiusKm   float64
	DefaultPriority        string
	GatewayTimeout         time.Duration
	GeofenceTimeout        time.Duration
	FanoutConcurrency      int
	PreferenceCacheTTL     time.Duration
	EventDedupeTTL         time.Duration
	RetryBackoff           []time.Duration
	DeliveryMaxAttempts    int

	// Workers
	DispatchWorkers   int
	DispatchQueueSize int
	TokenStaleDays    int
	CleanupInterval   time.Duration

	// Ingress rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "mongodb://localhost:27017/foodshare_notify"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		EventSourceSecret: getEnv("EVENT_SOURCE_SECRET", ""),

		// Firebase
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),

		// APNs
		APNSKeyPath:    getEnv("APNS_KEY_PATH", ""),
		APNSKeyID:      getEnv("APNS_KEY_ID", ""),
		APNSTeamID:     getEnv("APNS_TEAM_ID", ""),
		APNSBundleID:   getEnv("APNS_BUNDLE_ID", ""),
		APNSProduction: getEnvAsBool("APNS_PRODUCTION", false),

		// Kafka
		KafkaBrokers: getEnvAsSlice("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "foodshare.domain-events"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "foodshare-notify"),

		// Pipeline
		GroupWindow:            getEnvAsDuration("GROUP_WINDOW", 5*time.Minute),
		GroupCollapseThreshold: getEnvAsInt("GROUP_COLLAPSE_THRESHOLD", 3),
		GroupFlushSize:         getEnvAsInt("GROUP_FLUSH_SIZE", 5),
		NearbySearchRadiusKm:   getEnvAsFloat("NEARBY_SEARCH_RADIUS_KM", 100),
		DefaultPriority:        getEnv("DEFAULT_PRIORITY", "medium"),
		GatewayTimeout:         getEnvAsDuration("GATEWAY_TIMEOUT", 3*time.Second),
		GeofenceTimeout:        getEnvAsDuration("GEOFENCE_TIMEOUT", 3*time.Second),
		FanoutConcurrency:      getEnvAsInt("FANOUT_CONCURRENCY", 16),
		PreferenceCacheTTL:     getEnvAsDuration("PREFERENCE_CACHE_TTL", time.Minute),
		EventDedupeTTL:         getEnvAsDuration("EVENT_DEDUPE_TTL", 15*time.Minute),
		RetryBackoff:           getEnvAsDurations("RETRY_BACKOFF", []time.Duration{time.Second, 5 * time.Second, 15 * time.Second, 60 * time.Second}),
		DeliveryMaxAttempts:    getEnvAsInt("DELIVERY_MAX_ATTEMPTS", 4),

		// Workers
		DispatchWorkers:   getEnvAsInt("DISPATCH_WORKERS", 4),
		DispatchQueueSize: getEnvAsInt("DISPATCH_QUEUE_SIZE", 1000),
		TokenStaleDays:    getEnvAsInt("TOKEN_STALE_DAYS", 60),
		CleanupInterval:   getEnvAsDuration("CLEANUP_INTERVAL", 6*time.Hour),

		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func InitRedis(cfg *Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logrus.Warnf("Invalid REDIS_URL, falling back to localhost: %v", err)
		opt = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	client := redis.NewClient(opt)
	return client
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getEnvAsDurations parses a comma separated list such as "1s,5s,15s,60s".
// Any unparsable entry discards the whole value.
func getEnvAsDurations(key string, defaultValue []time.Duration) []time.Duration {
	items := getEnvAsSlice(key, nil)
	if len(items) == 0 {
		return defaultValue
	}

	durations := make([]time.Duration, 0, len(items))
	for _, item := range items {
		d, err := time.ParseDuration(item)
		if err != nil {
			return defaultValue
		}
		durations = append(durations, d)
	}
	return durations
}
