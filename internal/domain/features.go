package domain

// VectorSize is the fixed width of the model feature vector.
const VectorSize = 6

// FeatureNames lists the model vector fields in their fixed order.
// The trained scaler and model depend on this exact order.
var FeatureNames = [VectorSize]string{
	"peak_hour",
	"average_transactions_per_hour",
	"high_value_transaction_ratio",
	"late_night_frequency",
	"unique_customer_count",
	"time_diff_minutes",
}

// MerchantFeatures is the aggregated feature row for one merchant,
// derived from a single immutable transaction batch.
type MerchantFeatures struct {
	MerchantID string `json:"merchant_id"`

	// Model vector fields, in schema order.
	PeakHour               int     `json:"peak_hour"`
	AvgTransactionsPerHour float64 `json:"average_transactions_per_hour"`
	HighValueRatio         float64 `json:"high_value_transaction_ratio"`
	LateNightFrequency     float64 `json:"late_night_frequency"`
	UniqueCustomerCount    int     `json:"unique_customer_count"`
	TimeDiffMinutes        float64 `json:"time_diff_minutes"`

	// Amount statistics are reported alongside the vector but are not
	// part of it: the model is trained on the six fields above only.
	// AvgAmount is the mean amount; VarAmount is the sample variance,
	// reported as 0 when the merchant has fewer than two transactions.
	AvgAmount float64 `json:"average_transaction_amount"`
	VarAmount float64 `json:"variance_transaction_amount"`

	// TransactionCount is the number of transactions the row was built from.
	TransactionCount int `json:"transaction_count"`
}

// Vector returns the feature values in schema order, ready for scoring.
func (f *MerchantFeatures) Vector() []float64 {
	return []float64{
		float64(f.PeakHour),
		f.AvgTransactionsPerHour,
		f.HighValueRatio,
		f.LateNightFrequency,
		float64(f.UniqueCustomerCount),
		f.TimeDiffMinutes,
	}
}

// FeatureVectorInput is the API payload for POST /predict: one already
// assembled feature vector, field names matching FeatureNames.
type FeatureVectorInput struct {
	PeakHour               float64 `json:"peak_hour"`
	AvgTransactionsPerHour float64 `json:"average_transactions_per_hour"`
	HighValueRatio         float64 `json:"high_value_transaction_ratio"`
	LateNightFrequency     float64 `json:"late_night_frequency"`
	UniqueCustomerCount    float64 `json:"unique_customer_count"`
	TimeDiffMinutes        float64 `json:"time_diff_minutes"`
}

// Vector returns the input values in schema order.
func (in *FeatureVectorInput) Vector() []float64 {
	return []float64{
		in.PeakHour,
		in.AvgTransactionsPerHour,
		in.HighValueRatio,
		in.LateNightFrequency,
		in.UniqueCustomerCount,
		in.TimeDiffMinutes,
	}
}
