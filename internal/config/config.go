package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName    string
	AppVersion string
	Port       string

	Environment   string
	AdminAPIToken string

	// Dwolla webhook subscription secret used for HMAC verification.
	WebhookSecret string

	MaxEventAttempts  int
	RetryBaseDelay    time.Duration
	QueuePollInterval time.Duration
	QueueBatchSize    int
	QueueAutoStart    bool

	StuckThreshold time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int

	ReconBatchSize  int
	ReconBatchDelay time.Duration

	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "unified-dashboard"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Port:          getenv("PORT", "8080"),
		Environment:   getenv("ENVIRONMENT", "development"),
		AdminAPIToken: strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),

		WebhookSecret: strings.TrimSpace(getenv("DWOLLA_WEBHOOK_SECRET", "")),

		MaxEventAttempts:  getenvInt("WEBHOOK_MAX_ATTEMPTS", 5),
		RetryBaseDelay:    getenvDuration("WEBHOOK_RETRY_BASE_DELAY", 5*time.Second),
		QueuePollInterval: getenvDuration("QUEUE_POLL_INTERVAL", 10*time.Second),
		QueueBatchSize:    getenvInt("QUEUE_BATCH_SIZE", 50),
		QueueAutoStart:    getenvBool("QUEUE_AUTO_START", true),

		StuckThreshold: getenvDuration("JOURNEY_STUCK_THRESHOLD", 2*time.Hour),
		SweepInterval:  getenvDuration("JOURNEY_SWEEP_INTERVAL", 10*time.Minute),
		SweepBatchSize: getenvInt("JOURNEY_SWEEP_BATCH_SIZE", 200),

		ReconBatchSize:  getenvInt("RECONCILIATION_BATCH_SIZE", 25),
		ReconBatchDelay: getenvDuration("RECONCILIATION_BATCH_DELAY", time.Second),

		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "dashboard"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DB_SSL_MODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 100),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DB_CONN_MAX_IDLE_TIME", 60),
	}

	return &cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
