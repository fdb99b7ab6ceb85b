package config

import "time"

// CacheConfig controls the read cache in front of the availability
// endpoint.  Availability is served from the relational aggregate, so
// a short TTL keeps the endpoint cheap under load without letting it
// drift far from the authoritative count.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads the cache settings from the environment.
// Defaults are used when variables are not set.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("CACHE_TTL", 10*time.Second),
		Prefix:  getenv("CACHE_PREFIX", "cache"),
	}
}
