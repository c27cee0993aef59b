package config

import "time"

// RateLimitConfig tunes the token bucket that protects the auth endpoints.
// The bucket lives in Redis when a client is available and falls back to an
// in-process limiter otherwise.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        getBool("RATE_LIMIT_ENABLED", true),
		Capacity:       getInt("RATE_LIMIT_CAPACITY", 20),
		RefillTokens:   getInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: getDuration("RATE_LIMIT_REFILL_INTERVAL", 3*time.Second),
		TTL:            getDuration("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    getEnv("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
		Prefix:         getEnv("RATE_LIMIT_PREFIX", "estate:rl"),
		Debug:          getBool("RATE_LIMIT_DEBUG", false),
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

// RefillRate converts the bucket settings into tokens per second for the
// in-process fallback limiter.
func (c RateLimitConfig) RefillRate() float64 {
	return float64(c.RefillTokens) / c.RefillInterval.Seconds()
}
