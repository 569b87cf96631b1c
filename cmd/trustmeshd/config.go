package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration for the reputation-and-trust core
// daemon, resolved the same way services/payments-gateway/config.go resolves
// its Config: typed fields, PREFIX_VAR env names, sane defaults.
type Config struct {
	ListenAddress string
	Env           string

	// StorageDriver selects the production persistence backend: "postgres"
	// or "sqlite". Defaults to sqlite so the daemon runs with zero external
	// dependencies out of the box.
	StorageDriver string
	PostgresDSN   string
	SQLitePath    string

	IntakeRatePerSecond float64
	IntakeBurst         int

	AuthorityInterval  time.Duration
	PathSweepInterval  time.Duration
	AnomalyInterval    time.Duration
	SubscriptionSweep  time.Duration
	ScoreInterval      time.Duration

	// PlatformFeeMDRBasisPoints and PlatformFeeFreeTierTxPerMonth configure
	// the merchant-discount-rate platform fee applied to upto/subscription/
	// batch scheme settlements. Zero MDR disables fee collection entirely.
	PlatformFeeMDRBasisPoints      uint32
	PlatformFeeFreeTierTxPerMonth  uint64

	// IntakeQuotaPerMinute bounds the number of intake requests accepted
	// per API key per minute, independent of the global token-bucket
	// backpressure gate. Zero disables per-key quota enforcement.
	IntakeQuotaPerMinute uint32

	// AlertJournalPath, when non-empty, durably logs every emitted anomaly
	// alert to a rotated file independent of the stdout service log.
	AlertJournalPath string

	// JobTablePath, when non-empty, overrides the scheduler's built-in job
	// intervals from an operator-supplied YAML or TOML file (by extension),
	// the same dual-format split the teacher's chain config and deploy
	// manifests use.
	JobTablePath string
}

const (
	envListen        = "TRUSTMESH_LISTEN"
	envEnv           = "TRUSTMESH_ENV"
	envStorageDriver = "TRUSTMESH_STORAGE_DRIVER"
	envPostgresDSN   = "TRUSTMESH_POSTGRES_DSN"
	envSQLitePath    = "TRUSTMESH_SQLITE_PATH"
	envIntakeRate    = "TRUSTMESH_INTAKE_RATE"
	envIntakeBurst   = "TRUSTMESH_INTAKE_BURST"
	envAuthorityInt  = "TRUSTMESH_AUTHORITY_INTERVAL"
	envPathSweepInt  = "TRUSTMESH_PATH_SWEEP_INTERVAL"
	envAnomalyInt    = "TRUSTMESH_ANOMALY_INTERVAL"
	envSubSweepInt   = "TRUSTMESH_SUBSCRIPTION_SWEEP_INTERVAL"
	envScoreInt      = "TRUSTMESH_SCORE_INTERVAL"
	envFeeMDRBps     = "TRUSTMESH_PLATFORM_FEE_MDR_BASIS_POINTS"
	envFeeFreeTier   = "TRUSTMESH_PLATFORM_FEE_FREE_TIER_TX_PER_MONTH"
	envIntakeQuota   = "TRUSTMESH_INTAKE_QUOTA_PER_MINUTE"
	envAlertJournal  = "TRUSTMESH_ALERT_JOURNAL_PATH"
	envJobTablePath  = "TRUSTMESH_JOB_TABLE_PATH"
)

// LoadConfigFromEnv resolves configuration from environment variables with
// sane defaults, failing when the storage driver name is unknown or when
// postgres is selected without a connection string.
func LoadConfigFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddress:       getenvDefault(envListen, ":8080"),
		Env:                 getenvDefault(envEnv, "development"),
		StorageDriver:       strings.ToLower(getenvDefault(envStorageDriver, "sqlite")),
		PostgresDSN:         os.Getenv(envPostgresDSN),
		SQLitePath:          getenvDefault(envSQLitePath, "trustmesh.db"),
		IntakeRatePerSecond: parseFloatDefault(envIntakeRate, 50),
		IntakeBurst:         parseIntDefault(envIntakeBurst, 100),
		AuthorityInterval:   parseDurationDefault(envAuthorityInt, 2*time.Minute),
		PathSweepInterval:   parseDurationDefault(envPathSweepInt, 10*time.Minute),
		AnomalyInterval:     parseDurationDefault(envAnomalyInt, 5*time.Minute),
		SubscriptionSweep:   parseDurationDefault(envSubSweepInt, time.Hour),
		ScoreInterval:       parseDurationDefault(envScoreInt, 3*time.Minute),
		PlatformFeeMDRBasisPoints:     uint32(parseIntDefault(envFeeMDRBps, 0)),
		PlatformFeeFreeTierTxPerMonth: uint64(parseIntDefault(envFeeFreeTier, 0)),
		IntakeQuotaPerMinute:          uint32(parseIntDefault(envIntakeQuota, 0)),
		AlertJournalPath:              os.Getenv(envAlertJournal),
		JobTablePath:                  os.Getenv(envJobTablePath),
	}

	switch cfg.StorageDriver {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("%s is required when %s=postgres", envPostgresDSN, envStorageDriver)
		}
	case "sqlite":
		// SQLitePath always has a default; nothing further to validate.
	default:
		return nil, fmt.Errorf("%s: unknown storage driver %q", envStorageDriver, cfg.StorageDriver)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func parseDurationDefault(key string, def time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return def
}

func parseFloatDefault(key string, def float64) float64 {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return def
}

func parseIntDefault(key string, def int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}
