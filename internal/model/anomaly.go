package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/opensource-finance/harrier/internal/domain"
)

// AnomalyScorer turns a merchant feature vector into an anomaly verdict:
// normalize with the fitted ranges, reconstruct through the opaque
// model, score by mean squared error, classify against the stored
// threshold. The threshold is calibration data computed offline, never
// recomputed here.
type AnomalyScorer struct {
	normalizer    *Normalizer
	reconstructor Reconstructor
	threshold     float64
	maxConcurrent int
}

// NewAnomalyScorer builds a scorer from a persisted artifact and a
// reconstruction backend. A nil artifact or reconstructor means the
// external model was never provisioned: ModelUnavailable.
func NewAnomalyScorer(artifact *domain.ScorerArtifact, rec Reconstructor, maxConcurrent int) (*AnomalyScorer, error) {
	if artifact == nil {
		return nil, fmt.Errorf("%w: no scorer artifact loaded", domain.ErrModelUnavailable)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: no reconstruction backend", domain.ErrModelUnavailable)
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}

	normalizer, err := NewNormalizer(artifact.Mins, artifact.Maxs)
	if err != nil {
		return nil, err
	}

	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}

	return &AnomalyScorer{
		normalizer:    normalizer,
		reconstructor: rec,
		threshold:     artifact.Threshold,
		maxConcurrent: maxConcurrent,
	}, nil
}

// Threshold returns the decision boundary the scorer classifies against.
func (s *AnomalyScorer) Threshold() float64 {
	return s.threshold
}

// Score evaluates one raw (unnormalized) feature vector.
func (s *AnomalyScorer) Score(ctx context.Context, vec []float64) (*domain.AnomalyVerdict, error) {
	scaled, err := s.normalizer.Normalize(vec)
	if err != nil {
		return nil, err
	}

	reconstructed, err := s.reconstructor.Reconstruct(ctx, scaled)
	if err != nil {
		return nil, err
	}
	if len(reconstructed) != len(scaled) {
		return nil, fmt.Errorf("%w: reconstruction has %d fields, expected %d",
			domain.ErrSchemaMismatch, len(reconstructed), len(scaled))
	}

	var sq float64
	for i := range scaled {
		d := scaled[i] - reconstructed[i]
		sq += d * d
	}
	score := sq / float64(len(scaled))

	return &domain.AnomalyVerdict{
		AnomalyScore: score,
		Threshold:    s.threshold,
		IsAnomalous:  score > s.threshold,
	}, nil
}

// ScoreAll evaluates every feature row with bounded concurrency. Each
// merchant is scored exactly once; calls are independent and carry no
// ordering requirement, so results come back in input order regardless
// of completion order. The first error aborts the batch.
func (s *AnomalyScorer) ScoreAll(ctx context.Context, rows []*domain.MerchantFeatures) ([]*domain.AnomalyVerdict, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no feature rows to score", domain.ErrEmptyInput)
	}

	verdicts := make([]*domain.AnomalyVerdict, len(rows))
	errs := make([]error, len(rows))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxConcurrent)

	for i, row := range rows {
		wg.Add(1)
		go func(idx int, f *domain.MerchantFeatures) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			v, err := s.Score(ctx, f.Vector())
			if err != nil {
				errs[idx] = fmt.Errorf("merchant %s: %w", f.MerchantID, err)
				return
			}
			v.MerchantID = f.MerchantID
			verdicts[idx] = v
		}(i, row)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return verdicts, nil
}
