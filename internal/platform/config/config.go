package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string
	EventTopic   string
	RedisAddr    string

	IngestionGroup string
	RefreshGroup   string
	FromBeginning  bool

	ProducerRetryMax     uint64
	ProducerRetryInitial time.Duration

	EnableIngestionConsumer   bool
	EnableLeaderboardRefresh  bool
	EnableLeaderboardSnapshot bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "pollcast"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("EVENTLOG_TOPIC")
	if topic == "" {
		topic = "pollcast.events"
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,
		EventTopic:   topic,
		RedisAddr:    os.Getenv("REDIS_ADDR"),

		IngestionGroup: os.Getenv("INGESTION_CONSUMER_GROUP"),
		RefreshGroup:   os.Getenv("REFRESH_CONSUMER_GROUP"),
		FromBeginning:  envBool("CONSUME_FROM_BEGINNING", false),

		ProducerRetryMax:     envUint("PRODUCER_RETRY_MAX", 4),
		ProducerRetryInitial: envDuration("PRODUCER_RETRY_INITIAL", 50*time.Millisecond),

		EnableIngestionConsumer:   envBool("ENABLE_INGESTION_CONSUMER", true),
		EnableLeaderboardRefresh:  envBool("ENABLE_LEADERBOARD_REFRESH", true),
		EnableLeaderboardSnapshot: envBool("ENABLE_LEADERBOARD_SNAPSHOT", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envUint(name string, fallback uint64) uint64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
