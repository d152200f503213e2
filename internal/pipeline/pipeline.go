// Package pipeline wires the scoring stages together: transaction store,
// feature extraction, rule scoring, model scoring, and the combiner.
// Both the HTTP handler and the async worker run batches through it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/combiner"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/features"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/model"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/store"
)

// EngineVersion is stamped into every batch verdict.
const EngineVersion = "harrier-1.0"

// Pipeline is a pure, synchronous batch transformation. It holds no
// per-batch state; a single instance serves concurrent requests.
type Pipeline struct {
	assembler  *features.Assembler
	ruleScorer *rules.Scorer
	celEngine  *rules.Engine
	anomaly    *model.AnomalyScorer
	comb       *combiner.Combiner
	metrics    *metrics.Metrics
}

// New builds a pipeline. The anomaly scorer may be nil when no model
// artifact is provisioned; the pipeline then runs rules-only and the
// combiner treats the model signal as neutral. The CEL engine and
// metrics are likewise optional.
func New(cfg domain.ScoringConfig, anomaly *model.AnomalyScorer, celEngine *rules.Engine, m *metrics.Metrics) (*Pipeline, error) {
	assembler, err := features.NewAssembler(cfg)
	if err != nil {
		return nil, err
	}
	ruleScorer, err := rules.NewScorer(cfg)
	if err != nil {
		return nil, err
	}
	comb, err := combiner.New(cfg)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		assembler:  assembler,
		ruleScorer: ruleScorer,
		celEngine:  celEngine,
		anomaly:    anomaly,
		comb:       comb,
		metrics:    m,
	}, nil
}

// HasModel reports whether a model artifact is loaded.
func (p *Pipeline) HasModel() bool {
	return p.anomaly != nil
}

// AnomalyScorer returns the model scorer, or nil in rules-only mode.
func (p *Pipeline) AnomalyScorer() *model.AnomalyScorer {
	return p.anomaly
}

// Features assembles feature rows for a batch without scoring it.
func (p *Pipeline) Features(txs []*domain.Transaction) ([]*domain.MerchantFeatures, error) {
	s, err := store.New(txs)
	if err != nil {
		return nil, err
	}
	return p.assembler.Assemble(s)
}

// Run scores one immutable batch end to end. The same batch always
// produces the same verdict; there is no hidden randomness beyond the
// generated batch id and timestamps.
func (p *Pipeline) Run(ctx context.Context, tenantID, traceID string, txs []*domain.Transaction) (*domain.BatchVerdict, error) {
	start := time.Now()

	result, err := p.run(ctx, tenantID, traceID, start, txs)

	if p.metrics != nil {
		p.metrics.PipelineSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			outcome := "error"
			if errors.Is(err, domain.ErrModelUnavailable) {
				p.metrics.ModelErrors.Inc()
				outcome = "model_unavailable"
			}
			p.metrics.BatchesScored.WithLabelValues(outcome).Inc()
		} else {
			p.metrics.BatchesScored.WithLabelValues("ok").Inc()
			p.metrics.MerchantsScored.Add(float64(result.Metadata.MerchantCount))
			p.metrics.AnomaliesFound.Add(float64(result.Metadata.AnomalousCount))
		}
	}

	return result, err
}

func (p *Pipeline) run(ctx context.Context, tenantID, traceID string, start time.Time, txs []*domain.Transaction) (*domain.BatchVerdict, error) {
	s, err := store.New(txs)
	if err != nil {
		return nil, err
	}

	featureStart := time.Now()
	rows, err := p.assembler.Assemble(s)
	if err != nil {
		return nil, fmt.Errorf("feature assembly: %w", err)
	}
	featureMs := time.Since(featureStart).Milliseconds()

	ruleStart := time.Now()
	records, err := p.ruleScorer.Score(s)
	if err != nil {
		return nil, fmt.Errorf("rule scoring: %w", err)
	}
	rulesMs := time.Since(ruleStart).Milliseconds()

	var verdicts []*domain.AnomalyVerdict
	var modelMs int64
	if p.anomaly != nil {
		modelStart := time.Now()
		verdicts, err = p.anomaly.ScoreAll(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("model scoring: %w", err)
		}
		modelMs = time.Since(modelStart).Milliseconds()
	}

	var supplemental []domain.SupplementalResult
	if p.celEngine != nil {
		supplemental = p.celEngine.EvaluateAll(ctx, rows)
	}

	batch := p.comb.Combine(&combiner.Input{
		TenantID:     tenantID,
		TraceID:      traceID,
		RuleRecords:  records,
		Verdicts:     verdicts,
		Supplemental: supplemental,
		StartTime:    start,
	})

	batch.Metadata.TransactionCount = s.Len()
	batch.Metadata.FeatureMs = featureMs
	batch.Metadata.RulesMs = rulesMs
	batch.Metadata.ModelMs = modelMs
	batch.Metadata.EngineVersion = EngineVersion

	return batch, nil
}
