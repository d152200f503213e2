// Package combiner merges the transaction-grained rule signal and the
// merchant-grained model signal into one verdict per merchant.
package combiner

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Combiner applies the hybrid decision policy: a merchant is anomalous
// when EITHER the model verdict is true OR its rolled-up rule score
// meets the rule threshold. Rolling the per-transaction rule records up
// to one merchant score happens here, not in the rule scorer.
type Combiner struct {
	ruleThreshold int
	rollup        domain.RollupMode
}

// New creates a combiner from validated scoring configuration.
func New(cfg domain.ScoringConfig) (*Combiner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Combiner{
		ruleThreshold: cfg.RuleScoreThreshold,
		rollup:        cfg.Rollup,
	}, nil
}

// Input holds the per-signal results for one batch.
type Input struct {
	TenantID     string
	TraceID      string
	RuleRecords  []domain.RuleScoreRecord
	Verdicts     []*domain.AnomalyVerdict
	Supplemental []domain.SupplementalResult
	StartTime    time.Time
}

// merchantState accumulates both signals for one merchant.
type merchantState struct {
	rolledScore  int
	flaggedRows  int
	hasRules     bool
	velocity     bool
	oddHour      bool
	concentrated bool

	model     *domain.AnomalyVerdict
	triggered []string
}

// Combine produces the batch verdict. A merchant present in either
// signal gets a row; a missing signal contributes a neutral 0, never an
// error and never a silent drop.
func (c *Combiner) Combine(input *Input) *domain.BatchVerdict {
	states := make(map[string]*merchantState)
	get := func(id string) *merchantState {
		st, ok := states[id]
		if !ok {
			st = &merchantState{}
			states[id] = st
		}
		return st
	}

	for _, rec := range input.RuleRecords {
		st := get(rec.MerchantID)
		st.hasRules = true
		if rec.RuleAnomalyScore > st.rolledScore {
			st.rolledScore = rec.RuleAnomalyScore
		}
		if rec.RuleAnomalyScore > 0 {
			st.flaggedRows++
		}
		st.velocity = st.velocity || rec.HighVelocityScore == 1
		st.oddHour = st.oddHour || rec.OddHourScore == 1
		st.concentrated = st.concentrated || rec.CustomerConcentrationScore == 1
	}

	for _, v := range input.Verdicts {
		get(v.MerchantID).model = v
	}

	for _, sr := range input.Supplemental {
		if sr.Triggered {
			st := get(sr.MerchantID)
			st.triggered = append(st.triggered, "rule "+sr.RuleName+" triggered")
		}
	}

	merchantIDs := make([]string, 0, len(states))
	for id := range states {
		merchantIDs = append(merchantIDs, id)
	}
	sort.Strings(merchantIDs)

	anomalous := 0
	merchants := make([]domain.MerchantVerdict, 0, len(merchantIDs))
	for _, id := range merchantIDs {
		st := states[id]

		ruleScore := st.rolledScore
		if c.rollup == domain.RollupCountFlagged {
			ruleScore = st.flaggedRows
		}

		mv := domain.MerchantVerdict{
			MerchantID: id,
			RuleScore:  ruleScore,
			RuleFlag:   st.hasRules && ruleScore >= c.ruleThreshold,
		}

		if st.model != nil {
			mv.AnomalyScore = st.model.AnomalyScore
			mv.Threshold = st.model.Threshold
			mv.ModelFlag = st.model.IsAnomalous
			mv.ModelScored = true
		}

		mv.IsAnomalous = mv.ModelFlag || mv.RuleFlag || len(st.triggered) > 0

		if mv.IsAnomalous {
			anomalous++
			mv.Reasons = reasons(st, mv)
		}

		merchants = append(merchants, mv)
	}

	return &domain.BatchVerdict{
		ID:          uuid.New().String(),
		TenantID:    input.TenantID,
		ScoredAt:    time.Now().UTC(),
		Merchants:   merchants,
		RuleRecords: input.RuleRecords,
		Metadata: domain.BatchMetadata{
			TraceID:        input.TraceID,
			MerchantCount:  len(merchants),
			AnomalousCount: anomalous,
			TotalMs:        time.Since(input.StartTime).Milliseconds(),
		},
	}
}

// reasons builds the human-readable explanation for a flagged merchant.
func reasons(st *merchantState, mv domain.MerchantVerdict) []string {
	var out []string
	if mv.ModelFlag {
		out = append(out, "reconstruction error above threshold")
	}
	if mv.RuleFlag {
		if st.velocity {
			out = append(out, "high transaction velocity")
		}
		if st.oddHour {
			out = append(out, "activity outside business hours")
		}
		if st.concentrated {
			out = append(out, "customer concentration")
		}
	}
	out = append(out, st.triggered...)
	return out
}
