// Package model holds the contract with the external reconstruction
// model: feature normalization, reconstruction-error scoring, and the
// threshold comparison that turns an error into a verdict.
package model

import (
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Normalizer applies the min-max scaling the model was trained with.
// Ranges are fitted once during the external training phase and arrive
// here as part of the scorer artifact; nothing is fitted at runtime.
type Normalizer struct {
	mins []float64
	maxs []float64
}

// NewNormalizer builds a normalizer from fitted ranges.
func NewNormalizer(mins, maxs []float64) (*Normalizer, error) {
	if len(mins) != domain.VectorSize || len(maxs) != domain.VectorSize {
		return nil, fmt.Errorf("%w: got %d/%d ranges, schema expects %d",
			domain.ErrSchemaMismatch, len(mins), len(maxs), domain.VectorSize)
	}
	for i := range mins {
		if mins[i] > maxs[i] {
			return nil, fmt.Errorf("%w: range %s has min %g > max %g",
				domain.ErrInvalidConfig, domain.FeatureNames[i], mins[i], maxs[i])
		}
	}
	return &Normalizer{mins: mins, maxs: maxs}, nil
}

// Normalize scales a vector feature-wise to (x - min) / (max - min).
// A zero-range feature scales to 0, matching the fitted scaler's
// unit-range substitution. Values outside the fitted range are allowed
// and land outside [0,1], exactly as the trained scaler behaves.
func (n *Normalizer) Normalize(vec []float64) ([]float64, error) {
	if len(vec) != domain.VectorSize {
		return nil, fmt.Errorf("%w: vector has %d fields, schema expects %d",
			domain.ErrSchemaMismatch, len(vec), domain.VectorSize)
	}

	scaled := make([]float64, len(vec))
	for i, v := range vec {
		span := n.maxs[i] - n.mins[i]
		if span == 0 {
			scaled[i] = v - n.mins[i]
			continue
		}
		scaled[i] = (v - n.mins[i]) / span
	}
	return scaled, nil
}
