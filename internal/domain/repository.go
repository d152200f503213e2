// Package domain defines the core types and interfaces for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, tenantID string, txs []*Transaction) error
	GetTransaction(ctx context.Context, tenantID string, txID string) (*Transaction, error)
	GetTransactionsByMerchant(ctx context.Context, tenantID string, merchantID string, since time.Time) ([]*Transaction, error)

	// Batch verdicts
	SaveBatchVerdict(ctx context.Context, tenantID string, v *BatchVerdict) error
	GetBatchVerdict(ctx context.Context, tenantID string, id string) (*BatchVerdict, error)

	// Scorer artifacts (fitted ranges + threshold)
	SaveArtifact(ctx context.Context, tenantID string, artifact *ScorerArtifact) error
	GetArtifact(ctx context.Context, tenantID string) (*ScorerArtifact, error)

	// Supplemental rule configurations
	SaveRuleConfig(ctx context.Context, tenantID string, rule *RuleConfig) error
	ListRuleConfigs(ctx context.Context, tenantID string) ([]*RuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
