package domain

import (
	"fmt"
	"time"
)

// ScorerArtifact is the trained-model companion the scoring core treats
// as configuration: the min-max ranges the scaler was fitted with and the
// reconstruction-error threshold (calibrated offline as a high percentile
// of training errors, 95th by default). The model weights themselves live
// behind the reconstruction endpoint and are never loaded here.
type ScorerArtifact struct {
	TenantID  string    `json:"tenant_id"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`

	// Threshold is the anomaly decision boundary.
	Threshold float64 `json:"threshold"`

	// Mins and Maxs are the fitted per-feature ranges, in schema order.
	Mins []float64 `json:"mins"`
	Maxs []float64 `json:"maxs"`
}

// Validate checks the artifact against the feature schema.
func (a *ScorerArtifact) Validate() error {
	if a.Threshold < 0 {
		return fmt.Errorf("%w: threshold must be >= 0, got %g", ErrInvalidConfig, a.Threshold)
	}
	if len(a.Mins) != VectorSize || len(a.Maxs) != VectorSize {
		return fmt.Errorf("%w: artifact has %d/%d ranges, schema expects %d",
			ErrSchemaMismatch, len(a.Mins), len(a.Maxs), VectorSize)
	}
	for i := range a.Mins {
		if a.Mins[i] > a.Maxs[i] {
			return fmt.Errorf("%w: range %s has min %g > max %g",
				ErrInvalidConfig, FeatureNames[i], a.Mins[i], a.Maxs[i])
		}
	}
	return nil
}
