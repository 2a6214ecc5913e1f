package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string // development or production
	LogLevel    string
	HTTPAddr    string

	// PocketBase External Server
	PocketBaseURL     string // PocketBase server URL (e.g., http://192.168.100.100:8090)
	PocketBaseToken   string // Auth token for API access
	PocketBaseTimeout time.Duration

	// Telegram Bot
	TelegramBotToken string
	AuthorizedChatID string

	// Redis backs the attempt lock and the shared reputation cache.
	// Empty means process-local only.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Kafka security event stream. No brokers disables publishing.
	KafkaBrokers []string
	KafkaTopic   string

	ReputationURL    string
	ReputationAPIKey string
	ReputationTTL    time.Duration
	FaceModelURL     string
	FaceModelAPIKey  string

	PolicyPath string
	SweepSpec  string // cron spec with seconds for the lockdown sweep
	AuditTZ    string // location of business hours for audit suspicion
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("godotenv.Load() error: %v", err)
	}

	return &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		PocketBaseURL:     getEnv("POCKETBASE_URL", "http://192.168.100.100:8090"),
		PocketBaseToken:   os.Getenv("POCKETBASE_TOKEN"),
		PocketBaseTimeout: getDuration("POCKETBASE_TIMEOUT", 10*time.Second),
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		AuthorizedChatID:  os.Getenv("AUTHORIZED_CHAT_ID"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getInt("REDIS_DB", 0),
		KafkaBrokers:      getList("KAFKA_BROKERS"),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "attendance-security-events"),
		ReputationURL:     os.Getenv("IP_REPUTATION_URL"),
		ReputationAPIKey:  os.Getenv("IP_REPUTATION_API_KEY"),
		ReputationTTL:     getDuration("IP_REPUTATION_TTL", time.Hour),
		FaceModelURL:      os.Getenv("FACE_MODEL_URL"),
		FaceModelAPIKey:   os.Getenv("FACE_MODEL_API_KEY"),
		PolicyPath:        getEnv("POLICY_PATH", "policy.yaml"),
		SweepSpec:         getEnv("LOCKDOWN_SWEEP_SPEC", "0 * * * * *"),
		AuditTZ:           getEnv("AUDIT_TIMEZONE", "UTC"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
