package domain

// RuleConfig defines an operator-supplied supplemental rule, evaluated
// as a CEL expression over a merchant's assembled feature row. The three
// built-in rules (velocity, odd-hour, concentration) are fixed code and
// are not expressed here.
type RuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	// Expression is a CEL expression over the feature variables
	// (peak_hour, average_transactions_per_hour, ...). It must yield a
	// bool: true flags the merchant.
	Expression string `json:"expression"`

	Enabled bool `json:"enabled"`
}

// SupplementalResult is the outcome of one CEL rule for one merchant.
type SupplementalResult struct {
	RuleID     string `json:"rule_id"`
	RuleName   string `json:"rule_name"`
	MerchantID string `json:"merchant_id"`
	Triggered  bool   `json:"triggered"`
}
