package circuitbreaker

import (
	"os"
	"strconv"
	"time"
)

// BreakerConfig represents tunable settings for one breaker class
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// GetHTTPConfig returns the HTTP breaker configuration from environment variables
func GetHTTPConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      getEnvUint32("CB_HTTP_MAX_REQUESTS", 5),
		Interval:         getEnvDuration("CB_HTTP_INTERVAL", 30*time.Second),
		Timeout:          getEnvDuration("CB_HTTP_TIMEOUT", 15*time.Second),
		FailureThreshold: getEnvUint32("CB_HTTP_FAILURE_THRESHOLD", 3),
		SuccessThreshold: getEnvUint32("CB_HTTP_SUCCESS_THRESHOLD", 2),
	}
}

// GetRedisConfig returns the Redis breaker configuration from environment variables
func GetRedisConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      getEnvUint32("CB_REDIS_MAX_REQUESTS", 5),
		Interval:         getEnvDuration("CB_REDIS_INTERVAL", 30*time.Second),
		Timeout:          getEnvDuration("CB_REDIS_TIMEOUT", 15*time.Second),
		FailureThreshold: getEnvUint32("CB_REDIS_FAILURE_THRESHOLD", 3),
		SuccessThreshold: getEnvUint32("CB_REDIS_SUCCESS_THRESHOLD", 2),
	}
}

// ToConfig converts a BreakerConfig to a breaker Config
func (bc BreakerConfig) ToConfig() Config {
	return Config{
		MaxRequests:      bc.MaxRequests,
		Interval:         bc.Interval,
		Timeout:          bc.Timeout,
		FailureThreshold: bc.FailureThreshold,
		SuccessThreshold: bc.SuccessThreshold,
		OnStateChange:    nil, // set by the metrics collector
	}
}

func getEnvUint32(key string, defaultValue uint32) uint32 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 32); err == nil {
			return uint32(parsed)
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}
