// Package config loads the risk engine's environment-scoped options
// (spec.md §6) the way the teacher's tracker loads its own: godotenv
// plus a handful of envOr/envInt/envFloat helpers feeding one struct.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-scoped option named in spec.md §6,
// plus the ambient options (db path, cache dir, timeouts, worker count)
// a complete service needs around that contract.
type Config struct {
	ChainID            int64
	APIKey             string
	RateLimitSeconds   float64
	CacheTTLSeconds    int
	MaxBatchSize       int
	CommunityMinReport int

	CacheDir       string
	DBPath         string
	CommunityDir   string
	RemoteCallTO   time.Duration
	OnChainReadTO  time.Duration
	BatchAddressTO time.Duration
	BatchWorkers   int
	ExplorerBase   string
}

// Load reads a .env file if present, then overlays process environment
// variables, mirroring the teacher's config.Load.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ChainID:            envInt64("RISK_CHAIN_ID", 1),
		APIKey:             envOr("RISK_API_KEY", ""),
		RateLimitSeconds:   envFloat("RISK_RATE_LIMIT_SECONDS", 0.25),
		CacheTTLSeconds:    envInt("RISK_CACHE_TTL_SECONDS", 300),
		MaxBatchSize:       envInt("RISK_MAX_BATCH_SIZE", 50),
		CommunityMinReport: envInt("RISK_COMMUNITY_MIN_REPORTS", 2),
		CacheDir:           envOr("RISK_CACHE_DIR", ".cache"),
		DBPath:             envOr("RISK_DB_PATH", "riskengine.db"),
		CommunityDir:       envOr("RISK_COMMUNITY_DIR", ".data"),
		RemoteCallTO:       time.Duration(envInt("RISK_REMOTE_TIMEOUT_SECONDS", 15)) * time.Second,
		OnChainReadTO:      time.Duration(envInt("RISK_ONCHAIN_TIMEOUT_SECONDS", 10)) * time.Second,
		BatchAddressTO:     time.Duration(envInt("RISK_BATCH_ADDRESS_TIMEOUT_SECONDS", 30)) * time.Second,
		BatchWorkers:       envInt("RISK_BATCH_WORKERS", 2),
		ExplorerBase:       envOr("RISK_EXPLORER_BASE", "https://api.etherscan.io/v2/api"),
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
