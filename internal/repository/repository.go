// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var ErrInvalidInput = errors.New("invalid input")

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransactions stores a batch of transactions with tenant isolation.
func (r *SQLRepository) SaveTransactions(ctx context.Context, tenantID string, txs []*domain.Transaction) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	query := r.rebind(`
		INSERT INTO transactions (
			id, tenant_id, merchant_id, customer_id, timestamp, amount, status, pattern
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO NOTHING
	`)

	stmt, err := dbTx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, tx := range txs {
		if _, err := stmt.ExecContext(ctx,
			tx.ID, tenantID, tx.MerchantID, tx.CustomerID,
			tx.Timestamp, tx.Amount, tx.Status, tx.Pattern,
		); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

// GetTransaction retrieves a transaction by ID with tenant isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, merchant_id, customer_id, timestamp, amount, status, pattern
		FROM transactions
		WHERE tenant_id = ? AND id = ?
	`

	var tx domain.Transaction
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID).Scan(
		&tx.ID, &tx.TenantID, &tx.MerchantID, &tx.CustomerID,
		&tx.Timestamp, &tx.Amount, &tx.Status, &tx.Pattern,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &tx, nil
}

// GetTransactionsByMerchant retrieves a merchant's transactions since a
// cutoff, newest first, with tenant isolation.
func (r *SQLRepository) GetTransactionsByMerchant(ctx context.Context, tenantID string, merchantID string, since time.Time) ([]*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, merchant_id, customer_id, timestamp, amount, status, pattern
		FROM transactions
		WHERE tenant_id = ? AND merchant_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, merchantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.TenantID, &tx.MerchantID, &tx.CustomerID,
			&tx.Timestamp, &tx.Amount, &tx.Status, &tx.Pattern,
		); err != nil {
			return nil, err
		}
		txs = append(txs, &tx)
	}

	return txs, rows.Err()
}

// SaveBatchVerdict stores a scored batch with tenant isolation.
func (r *SQLRepository) SaveBatchVerdict(ctx context.Context, tenantID string, v *domain.BatchVerdict) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	merchants, _ := json.Marshal(v.Merchants)
	ruleRecords, _ := json.Marshal(v.RuleRecords)
	metadata, _ := json.Marshal(v.Metadata)

	query := `
		INSERT INTO batch_verdicts (
			id, tenant_id, scored_at, merchants, rule_records, metadata
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		v.ID, tenantID, v.ScoredAt,
		string(merchants), string(ruleRecords), string(metadata),
	)
	return err
}

// GetBatchVerdict retrieves a scored batch by ID with tenant isolation.
func (r *SQLRepository) GetBatchVerdict(ctx context.Context, tenantID string, id string) (*domain.BatchVerdict, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, scored_at, merchants, rule_records, metadata
		FROM batch_verdicts
		WHERE tenant_id = ? AND id = ?
	`

	var v domain.BatchVerdict
	var merchants, ruleRecords, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, id).Scan(
		&v.ID, &v.TenantID, &v.ScoredAt,
		&merchants, &ruleRecords, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(merchants), &v.Merchants)
	json.Unmarshal([]byte(ruleRecords), &v.RuleRecords)
	json.Unmarshal([]byte(metadata), &v.Metadata)

	return &v, nil
}

// SaveArtifact stores a scorer artifact with tenant isolation.
func (r *SQLRepository) SaveArtifact(ctx context.Context, tenantID string, artifact *domain.ScorerArtifact) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if err := artifact.Validate(); err != nil {
		return err
	}

	mins, _ := json.Marshal(artifact.Mins)
	maxs, _ := json.Marshal(artifact.Maxs)

	version := artifact.Version
	if version == "" {
		version = "1.0.0"
	}

	query := `
		INSERT INTO scorer_artifacts (
			tenant_id, version, threshold, mins, maxs, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, version) DO UPDATE SET
			threshold = excluded.threshold,
			mins = excluded.mins,
			maxs = excluded.maxs,
			created_at = excluded.created_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tenantID, version, artifact.Threshold,
		string(mins), string(maxs), time.Now().UTC(),
	)
	return err
}

// GetArtifact retrieves the newest scorer artifact for a tenant.
// Returns ModelUnavailable when none was ever provisioned.
func (r *SQLRepository) GetArtifact(ctx context.Context, tenantID string) (*domain.ScorerArtifact, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT tenant_id, version, threshold, mins, maxs, created_at
		FROM scorer_artifacts
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	var a domain.ScorerArtifact
	var mins, maxs string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(
		&a.TenantID, &a.Version, &a.Threshold, &mins, &maxs, &a.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no scorer artifact for tenant %s", domain.ErrModelUnavailable, tenantID)
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(mins), &a.Mins)
	json.Unmarshal([]byte(maxs), &a.Maxs)

	return &a, nil
}

// SaveRuleConfig stores a supplemental rule configuration.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, tenantID string, rule *domain.RuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, tenant_id, name, description, version, expression, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, enabled,
		now, now,
	)
	return err
}

// ListRuleConfigs retrieves all active supplemental rules for a tenant.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context, tenantID string) ([]*domain.RuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// Ping checks database health.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
