package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching is disabled.
// Methods lists the HTTP methods to cache.  KeyStrategy decides whether the
// caller's role takes part in the key ("route_query_role") or not.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables.  Defaults are used when a
// variable is not set.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      getBool("CACHE_ENABLED", true),
		Methods:      parseMethods(getEnv("CACHE_METHODS", "GET")),
		TTL:          getDuration("CACHE_TTL", 30*time.Second),
		KeyStrategy:  strings.ToLower(getEnv("CACHE_KEY_STRATEGY", "route_query_role")),
		Prefix:       getEnv("CACHE_PREFIX", "estate:cache"),
		MaxBodyBytes: getInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
