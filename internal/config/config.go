package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	IdentityHeader string
	HashAlgorithm  string
	AllowRawKeys   bool
	PolicyPath     string

	BeaconURL              string
	ThresholdURL           string
	ThresholdKeyName       string
	ExternalTimeoutSeconds int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		IdentityHeader:         envDefault("IDENTITY_HEADER", "X-Caller-Identity"),
		HashAlgorithm:          envDefault("HASH_ALGORITHM", "keccak256"),
		AllowRawKeys:           envBoolDefault("ALLOW_RAW_KEYS", true),
		PolicyPath:             os.Getenv("POLICY_PATH"),
		BeaconURL:              os.Getenv("BEACON_URL"),
		ThresholdURL:           os.Getenv("THRESHOLD_URL"),
		ThresholdKeyName:       envDefault("THRESHOLD_KEY_NAME", "dfx_test_key"),
		ExternalTimeoutSeconds: envIntDefault("EXTERNAL_TIMEOUT_SECONDS", 10),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func (c Config) ExternalTimeout() time.Duration {
	if c.ExternalTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ExternalTimeoutSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
