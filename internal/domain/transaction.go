package domain

import (
	"time"
)

// Transaction is a single merchant transaction to be scored.
// Produced once by an upstream source and never mutated by the pipeline.
type Transaction struct {
	ID         string `json:"transaction_id"`
	TenantID   string `json:"tenant_id,omitempty"`
	MerchantID string `json:"merchant_id"`
	CustomerID string `json:"customer_id"`

	// Temporal (second precision)
	Timestamp time.Time `json:"timestamp"`

	Amount float64 `json:"amount"`
	Status string  `json:"status"`

	// Pattern is test-data provenance (e.g. "late_night"). It is carried
	// through for benchmark evaluation and is never read by scoring.
	Pattern string `json:"pattern,omitempty"`
}

// Hour returns the transaction's hour of day in [0,23].
func (t *Transaction) Hour() int {
	return t.Timestamp.Hour()
}

// TransactionInput is the API payload for a single transaction in a batch.
type TransactionInput struct {
	ID         string  `json:"transaction_id"`
	MerchantID string  `json:"merchant_id"`
	CustomerID string  `json:"customer_id"`
	Timestamp  string  `json:"timestamp"` // RFC 3339
	Amount     float64 `json:"amount"`
	Status     string  `json:"status,omitempty"`
	Pattern    string  `json:"pattern,omitempty"`
}

// ToTransaction converts an API input to a Transaction domain object.
func (in *TransactionInput) ToTransaction(tenantID string) (*Transaction, error) {
	ts, err := time.Parse(time.RFC3339, in.Timestamp)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = "completed"
	}

	return &Transaction{
		ID:         in.ID,
		TenantID:   tenantID,
		MerchantID: in.MerchantID,
		CustomerID: in.CustomerID,
		Timestamp:  ts.Truncate(time.Second),
		Amount:     in.Amount,
		Status:     status,
		Pattern:    in.Pattern,
	}, nil
}
