package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    merchant_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    amount REAL NOT NULL,
    status TEXT NOT NULL,
    pattern TEXT,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_merchant ON transactions(tenant_id, merchant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(tenant_id, timestamp);
`

const schemaBatchVerdicts = `
CREATE TABLE IF NOT EXISTS batch_verdicts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    scored_at TIMESTAMP NOT NULL,
    merchants TEXT NOT NULL,
    rule_records TEXT,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batch_verdicts_tenant ON batch_verdicts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_batch_verdicts_scored_at ON batch_verdicts(tenant_id, scored_at);
`

// schemaArtifacts stores the trained-model companion per tenant: the
// fitted min-max ranges and the reconstruction-error threshold. One row
// per (tenant, version); the newest version wins.
const schemaArtifacts = `
CREATE TABLE IF NOT EXISTS scorer_artifacts (
    tenant_id TEXT NOT NULL,
    version TEXT NOT NULL,
    threshold REAL NOT NULL,
    mins TEXT NOT NULL,
    maxs TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, version)
);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_tenant ON rule_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(tenant_id, enabled);
`

// AllSchemas returns the migration statements in creation order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaBatchVerdicts,
		schemaArtifacts,
		schemaRuleConfigs,
	}
}
