package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the sync layer. Values come from
// environment variables with sensible defaults, so a bare process
// pointed at a server works out of the box.
type Config struct {
	// ServerURL is the base URL of the request/response API
	// (e.g. "https://chat.example.com/api").
	ServerURL string

	// SocketURL is the websocket endpoint of the message server
	// (e.g. "wss://chat.example.com/ws").
	SocketURL string

	// Reconnect backoff: delay = ReconnectBase * 2^(attempt-1),
	// capped at ReconnectMaxAttempts before surfacing a fatal error.
	ReconnectBase        time.Duration
	ReconnectMaxAttempts int

	// Token lifecycle monitor cadence and thresholds.
	TokenCheckInterval time.Duration
	TokenRefreshBelow  time.Duration
	TokenWarnBelow     time.Duration

	// Typing presence expiry windows.
	TypingTTL           time.Duration
	TypingMaxAge        time.Duration
	TypingSweepInterval time.Duration

	// MessagePageSize is how many messages a single history fetch
	// returns (latest page on channel activation).
	MessagePageSize int

	// RequestTimeout bounds every fallback-layer HTTP call.
	RequestTimeout time.Duration
}

func Load() Config {
	cfg := Config{
		ServerURL:            getEnv("HARBOR_SERVER_URL", "http://localhost:8000/api"),
		SocketURL:            getEnv("HARBOR_SOCKET_URL", "ws://localhost:8000/ws"),
		ReconnectBase:        getDuration("HARBOR_RECONNECT_BASE", time.Second),
		ReconnectMaxAttempts: getInt("HARBOR_RECONNECT_MAX_ATTEMPTS", 5),
		TokenCheckInterval:   getDuration("HARBOR_TOKEN_CHECK_INTERVAL", 5*time.Minute),
		TokenRefreshBelow:    getDuration("HARBOR_TOKEN_REFRESH_BELOW", 2*time.Hour),
		TokenWarnBelow:       getDuration("HARBOR_TOKEN_WARN_BELOW", time.Hour),
		TypingTTL:            getDuration("HARBOR_TYPING_TTL", 3*time.Second),
		TypingMaxAge:         getDuration("HARBOR_TYPING_MAX_AGE", 5*time.Second),
		TypingSweepInterval:  getDuration("HARBOR_TYPING_SWEEP", time.Second),
		MessagePageSize:      getInt("HARBOR_MESSAGE_PAGE_SIZE", 50),
		RequestTimeout:       getDuration("HARBOR_REQUEST_TIMEOUT", 10*time.Second),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[Config] invalid %s=%q, using default %d", key, value, fallback)
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("[Config] invalid %s=%q, using default %s", key, value, fallback)
		return fallback
	}
	return parsed
}
