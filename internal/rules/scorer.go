// Package rules provides the deterministic rule scorer and the CEL
// engine for operator-defined supplemental rules.
package rules

import (
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/store"
)

// Scorer computes the three built-in rule flags per transaction:
// high velocity and customer concentration are merchant-level (one
// triggering hour or customer taints every row of the merchant), the
// odd-hour flag is strictly per-transaction. The combiner reconciles
// the two granularities when it rolls scores up per merchant.
type Scorer struct {
	velocityThreshold      int
	businessStart          int
	businessEnd            int
	concentrationThreshold int
}

// NewScorer creates a rule scorer from validated configuration.
func NewScorer(cfg domain.ScoringConfig) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{
		velocityThreshold:      cfg.VelocityThreshold,
		businessStart:          cfg.BusinessHoursStart,
		businessEnd:            cfg.BusinessHoursEnd,
		concentrationThreshold: cfg.ConcentrationThreshold,
	}, nil
}

// Score produces one record per transaction, in the store's merchant
// and timestamp order. Merchant-level flags are precomputed once and
// looked up per row rather than re-scanned.
func (r *Scorer) Score(s *store.Store) ([]domain.RuleScoreRecord, error) {
	if s == nil || s.Len() == 0 {
		return nil, fmt.Errorf("%w: no transactions to score", domain.ErrEmptyInput)
	}

	highVelocity := r.highVelocityMerchants(s)
	concentrated := r.concentratedMerchants(s)

	records := make([]domain.RuleScoreRecord, 0, s.Len())
	s.Each(func(merchantID string, txs []*domain.Transaction) {
		velocityScore := 0
		if highVelocity[merchantID] {
			velocityScore = 1
		}
		concentrationScore := 0
		if concentrated[merchantID] {
			concentrationScore = 1
		}

		for _, tx := range txs {
			oddHour := 0
			if h := tx.Hour(); h < r.businessStart || h > r.businessEnd {
				oddHour = 1
			}

			records = append(records, domain.RuleScoreRecord{
				MerchantID:                 merchantID,
				TransactionID:              tx.ID,
				HighVelocityScore:          velocityScore,
				OddHourScore:               oddHour,
				CustomerConcentrationScore: concentrationScore,
				RuleAnomalyScore:           velocityScore + oddHour + concentrationScore,
			})
		}
	})

	return records, nil
}

// highVelocityMerchants flags merchants with any (merchant, hour-of-day)
// bucket holding more than the velocity threshold.
func (r *Scorer) highVelocityMerchants(s *store.Store) map[string]bool {
	flagged := make(map[string]bool)
	s.Each(func(merchantID string, txs []*domain.Transaction) {
		var counts [24]int
		for _, tx := range txs {
			counts[tx.Hour()]++
			if counts[tx.Hour()] > r.velocityThreshold {
				flagged[merchantID] = true
				return
			}
		}
	})
	return flagged
}

// concentratedMerchants flags merchants where any single customer
// reaches the concentration threshold.
func (r *Scorer) concentratedMerchants(s *store.Store) map[string]bool {
	flagged := make(map[string]bool)
	s.Each(func(merchantID string, txs []*domain.Transaction) {
		perCustomer := make(map[string]int, len(txs))
		for _, tx := range txs {
			perCustomer[tx.CustomerID]++
			if perCustomer[tx.CustomerID] >= r.concentrationThreshold {
				flagged[merchantID] = true
				return
			}
		}
	})
	return flagged
}
