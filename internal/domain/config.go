package domain

import (
	"fmt"
	"time"
)

// Config holds the complete Harrier configuration.
type Config struct {
	Server ServerConfig `json:"server"`

	// Tier determines which backing services are used.
	Tier Tier `json:"tier"`

	Scoring ScoringConfig `json:"scoring"`
	Model   ModelConfig   `json:"model"`

	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// JoinPolicy decides what happens to a merchant missing from an
// extractor's output (a single-transaction merchant has no gap statistic).
// Selected once for the whole pipeline.
type JoinPolicy string

const (
	// JoinImputeZero substitutes 0 for the missing statistic.
	JoinImputeZero JoinPolicy = "impute-zero"

	// JoinDropMissing removes the merchant from the model path.
	JoinDropMissing JoinPolicy = "drop-missing"
)

// RollupMode decides how per-transaction rule scores collapse to one
// merchant-level number inside the combiner.
type RollupMode string

const (
	// RollupMax takes the maximum rule score across the merchant's rows.
	RollupMax RollupMode = "max"

	// RollupCountFlagged counts rows with any rule flag set.
	RollupCountFlagged RollupMode = "count-flagged"
)

// ScoringConfig holds the rule and feature thresholds.
type ScoringConfig struct {
	// HighValueThreshold is the amount above which a transaction counts
	// as high-value. Strictly greater-than.
	HighValueThreshold float64 `json:"highValueThreshold"`

	// VelocityThreshold flags a merchant when any (merchant, hour) bucket
	// holds more than this many transactions.
	VelocityThreshold int `json:"velocityThreshold"`

	// BusinessHoursStart/End bound the normal window; a transaction at
	// hour < start or hour > end gets the odd-hour flag.
	BusinessHoursStart int `json:"businessHoursStart"`
	BusinessHoursEnd   int `json:"businessHoursEnd"`

	// ConcentrationThreshold flags a merchant when any single customer
	// reaches this many transactions with it.
	ConcentrationThreshold int `json:"concentrationThreshold"`

	// RuleScoreThreshold is the rolled-up rule score at or above which
	// the combiner flags a merchant.
	RuleScoreThreshold int `json:"ruleScoreThreshold"`

	Rollup RollupMode `json:"rollup"`
	Join   JoinPolicy `json:"join"`
}

// Validate checks all thresholds against their valid ranges.
func (c ScoringConfig) Validate() error {
	if c.HighValueThreshold < 0 {
		return fmt.Errorf("%w: highValueThreshold must be >= 0, got %.2f", ErrInvalidConfig, c.HighValueThreshold)
	}
	if c.VelocityThreshold < 1 {
		return fmt.Errorf("%w: velocityThreshold must be >= 1, got %d", ErrInvalidConfig, c.VelocityThreshold)
	}
	if c.BusinessHoursStart < 0 || c.BusinessHoursStart > 23 {
		return fmt.Errorf("%w: businessHoursStart must be in [0,23], got %d", ErrInvalidConfig, c.BusinessHoursStart)
	}
	if c.BusinessHoursEnd < 0 || c.BusinessHoursEnd > 23 {
		return fmt.Errorf("%w: businessHoursEnd must be in [0,23], got %d", ErrInvalidConfig, c.BusinessHoursEnd)
	}
	if c.BusinessHoursStart > c.BusinessHoursEnd {
		return fmt.Errorf("%w: businessHoursStart %d after businessHoursEnd %d", ErrInvalidConfig, c.BusinessHoursStart, c.BusinessHoursEnd)
	}
	if c.ConcentrationThreshold < 1 {
		return fmt.Errorf("%w: concentrationThreshold must be >= 1, got %d", ErrInvalidConfig, c.ConcentrationThreshold)
	}
	if c.RuleScoreThreshold < 0 {
		return fmt.Errorf("%w: ruleScoreThreshold must be >= 0, got %d", ErrInvalidConfig, c.RuleScoreThreshold)
	}
	switch c.Rollup {
	case RollupMax, RollupCountFlagged:
	default:
		return fmt.Errorf("%w: unknown rollup mode %q", ErrInvalidConfig, c.Rollup)
	}
	switch c.Join {
	case JoinImputeZero, JoinDropMissing:
	default:
		return fmt.Errorf("%w: unknown join policy %q", ErrInvalidConfig, c.Join)
	}
	return nil
}

// ModelConfig holds the external reconstruction model settings.
type ModelConfig struct {
	// Endpoint is the HTTP reconstruction endpoint. Empty selects the
	// built-in stub reconstructor (community tier / tests).
	Endpoint string `json:"endpoint"`

	// Timeout bounds a single model call; expiry maps to ModelUnavailable.
	Timeout time.Duration `json:"timeout"`

	// MaxConcurrent bounds in-flight model calls during batch scoring.
	MaxConcurrent int `json:"maxConcurrent"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + in-process cache and bus.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + Redis + NATS.
	TierPro Tier = "pro"
)

// DefaultScoringConfig returns the production-calibrated thresholds.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		HighValueThreshold:     10000,
		VelocityThreshold:      3,
		BusinessHoursStart:     9,
		BusinessHoursEnd:       18,
		ConcentrationThreshold: 2,
		RuleScoreThreshold:     1,
		Rollup:                 RollupMax,
		Join:                   JoinImputeZero,
	}
}

// DefaultConfig returns a Community tier configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:    TierCommunity,
		Scoring: DefaultScoringConfig(),
		Model: ModelConfig{
			Timeout:       2 * time.Second,
			MaxConcurrent: 16,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a Pro tier configuration.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
