package domain

import (
	"time"
)

// RuleScoreRecord is the rule scorer output for one transaction.
// Velocity and concentration are merchant-level flags repeated on every
// row of the merchant; odd-hour is genuinely per-transaction.
type RuleScoreRecord struct {
	MerchantID    string `json:"merchant_id"`
	TransactionID string `json:"transaction_id"`

	HighVelocityScore          int `json:"high_velocity_score"`
	OddHourScore               int `json:"odd_hour_score"`
	CustomerConcentrationScore int `json:"customer_concentration_score"`

	// RuleAnomalyScore is the sum of the three flags, in [0,3].
	RuleAnomalyScore int `json:"rule_anomaly_score"`
}

// AnomalyVerdict is the model-based verdict for one merchant.
type AnomalyVerdict struct {
	MerchantID   string  `json:"merchant_id,omitempty"`
	AnomalyScore float64 `json:"anomaly_score"`
	Threshold    float64 `json:"threshold"`
	IsAnomalous  bool    `json:"is_anomalous"`
}

// MerchantVerdict is the combined verdict for one merchant: the model
// signal, the rolled-up rule signal, and the final decision.
type MerchantVerdict struct {
	MerchantID string `json:"merchant_id"`

	// Model signal. Zero-valued with ModelScored=false when the merchant
	// was missing from the model path (e.g. drop-missing join policy).
	AnomalyScore float64 `json:"anomaly_score"`
	Threshold    float64 `json:"threshold"`
	ModelFlag    bool    `json:"model_flag"`
	ModelScored  bool    `json:"model_scored"`

	// Rule signal rolled up across the merchant's transactions.
	RuleScore int  `json:"rule_anomaly_score"`
	RuleFlag  bool `json:"rule_flag"`

	IsAnomalous bool     `json:"is_anomalous"`
	Reasons     []string `json:"reasons,omitempty"`
}

// BatchVerdict is the full scoring result for one transaction batch.
type BatchVerdict struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenant_id"`
	ScoredAt time.Time `json:"scored_at"`

	Merchants   []MerchantVerdict `json:"merchants"`
	RuleRecords []RuleScoreRecord `json:"rule_records,omitempty"`

	Metadata BatchMetadata `json:"metadata"`
}

// BatchMetadata carries processing information for a scored batch.
type BatchMetadata struct {
	TraceID          string `json:"trace_id,omitempty"`
	TransactionCount int    `json:"transaction_count"`
	MerchantCount    int    `json:"merchant_count"`
	AnomalousCount   int    `json:"anomalous_count"`
	FeatureMs        int64  `json:"feature_ms"`
	RulesMs          int64  `json:"rules_ms"`
	ModelMs          int64  `json:"model_ms"`
	TotalMs          int64  `json:"total_ms"`
	EngineVersion    string `json:"engine_version"`
}

// Anomalous returns the verdicts flagged as anomalous.
func (b *BatchVerdict) Anomalous() []MerchantVerdict {
	var out []MerchantVerdict
	for _, m := range b.Merchants {
		if m.IsAnomalous {
			out = append(out, m)
		}
	}
	return out
}
