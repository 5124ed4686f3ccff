package config

import (
	"os"
	"strconv"
	"strings"
)

const Version = "0.3.0"

// Config holds application configuration
type Config struct {
	// Server configuration
	Host string
	Port int

	// Storage configuration
	DBPath string // SQLite database path

	// Cache configuration
	CacheType string // "memory" or "redis"
	CacheTTL  int    // seconds
	CacheSize int
	RedisHost string
	RedisPort int

	// View persistence. Camera updates stream in continuously while the
	// user orbits; writes are coalesced and flushed at most once per
	// interval. The in-memory view is always current regardless.
	ViewFlushMillis int

	// Node placement jitter amplitude per axis, in world units.
	PlacementJitter float64

	// Debug
	Debug bool
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Host:            "127.0.0.1",
		Port:            9292,
		DBPath:          "noospace.db",
		CacheType:       "memory",
		CacheTTL:        300,
		CacheSize:       1024,
		RedisHost:       "localhost",
		RedisPort:       6379,
		ViewFlushMillis: 400,
		PlacementJitter: 1.5,
		Debug:           false,
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) {
	if val := os.Getenv("HOST"); val != "" {
		cfg.Host = val
	}
	if val := os.Getenv("PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Port = port
		}
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		cfg.DBPath = val
	}
	if val := os.Getenv("CACHE_TYPE"); val != "" {
		cfg.CacheType = val
	}
	if val := os.Getenv("CACHE_TTL"); val != "" {
		if ttl, err := strconv.Atoi(val); err == nil {
			cfg.CacheTTL = ttl
		}
	}
	if val := os.Getenv("CACHE_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			cfg.CacheSize = size
		}
	}
	if val := os.Getenv("REDIS_HOST"); val != "" {
		cfg.RedisHost = val
	}
	if val := os.Getenv("REDIS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.RedisPort = port
		}
	}
	if val := os.Getenv("VIEW_FLUSH_MS"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil && ms > 0 {
			cfg.ViewFlushMillis = ms
		}
	}
	if val := os.Getenv("PLACEMENT_JITTER"); val != "" {
		if jitter, err := strconv.ParseFloat(val, 64); err == nil && jitter >= 0 {
			cfg.PlacementJitter = jitter
		}
	}
	if val := os.Getenv("DEBUG"); val != "" {
		cfg.Debug = parseBool(val)
	}
}

func parseBool(val string) bool {
	val = strings.ToLower(val)
	return val == "true" || val == "1" || val == "yes"
}
