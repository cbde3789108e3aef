package dwollaclient

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string

	Timeout time.Duration

	RetryCount int
	RetryDelay time.Duration

	RateLimit int
	RateBurst int

	CacheTTL  time.Duration
	CacheSize int

	CircuitBreakerEnabled bool
	CBFailureThreshold    int
	CBRecoveryTime        time.Duration
	CBMinRequests         int
	CBSamplingDuration    time.Duration
	CBHalfOpenMaxSuccess  int
}

func LoadFromEnv() Config {
	baseURL := os.Getenv("DWOLLA_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.dwolla.com"
	}
	tokenURL := os.Getenv("DWOLLA_TOKEN_URL")
	if tokenURL == "" {
		tokenURL = baseURL + "/token"
	}

	return Config{
		BaseURL:      baseURL,
		TokenURL:     tokenURL,
		ClientID:     os.Getenv("DWOLLA_CLIENT_ID"),
		ClientSecret: os.Getenv("DWOLLA_CLIENT_SECRET"),

		Timeout: time.Second * time.Duration(getInt("DWOLLA_CLIENT_TIMEOUT", 30)),

		RetryCount: getInt("DWOLLA_CLIENT_RETRY_COUNT", 3),
		RetryDelay: time.Second * time.Duration(getInt("DWOLLA_CLIENT_RETRY_DELAY", 2)),

		RateLimit: getInt("DWOLLA_CLIENT_RATE_LIMIT", 100),
		RateBurst: getInt("DWOLLA_CLIENT_RATE_BURST", 2),

		CacheTTL:  time.Second * time.Duration(getInt("DWOLLA_CLIENT_CACHE_TTL", 300)),
		CacheSize: getInt("DWOLLA_CLIENT_CACHE_SIZE", 1000),

		CircuitBreakerEnabled: getBool("DWOLLA_CLIENT_ENABLE_CIRCUIT_BREAKER", true),
		CBFailureThreshold:    getInt("DWOLLA_CLIENT_CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5),
		CBRecoveryTime:        time.Second * time.Duration(getInt("DWOLLA_CLIENT_CIRCUIT_BREAKER_RECOVERY_TIME", 60)),
		CBMinRequests:         getInt("DWOLLA_CLIENT_CIRCUIT_BREAKER_MIN_REQUESTS", 10),
		CBSamplingDuration:    time.Second * time.Duration(getInt("DWOLLA_CLIENT_CIRCUIT_BREAKER_SAMPLING_DURATION", 60)),
		CBHalfOpenMaxSuccess:  getInt("DWOLLA_CLIENT_CIRCUIT_BREAKER_HALF_OPEN_MAX_SUCCESS", 3),
	}
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		return v == "true"
	}
	return def
}
