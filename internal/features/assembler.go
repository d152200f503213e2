package features

import (
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/store"
)

// Assembler joins all extractor outputs into one feature row per
// merchant with the fixed vector schema.
type Assembler struct {
	highValueThreshold float64
	join               domain.JoinPolicy
}

// NewAssembler creates an assembler. The join policy is fixed for the
// whole pipeline: a merchant missing a gap statistic is either imputed
// with 0 or dropped from the model path, never handled per-extractor.
func NewAssembler(cfg domain.ScoringConfig) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Assembler{
		highValueThreshold: cfg.HighValueThreshold,
		join:               cfg.Join,
	}, nil
}

// Assemble runs every extractor over the store and joins the results on
// merchant id. Rows come back in the store's sorted merchant order, so
// assembling the same batch twice yields identical output.
func (a *Assembler) Assemble(s *store.Store) ([]*domain.MerchantFeatures, error) {
	if s == nil || s.Len() == 0 {
		return nil, fmt.Errorf("%w: nothing to assemble", domain.ErrEmptyInput)
	}

	peak := PeakHour(s)
	perHour := AvgTransactionsPerHour(s)
	highValue := HighValueRatio(s, a.highValueThreshold)
	lateNight := LateNightFrequency(s)
	customers := UniqueCustomerCount(s)
	amounts := AmountStatistics(s)
	gaps := AvgTransactionGap(s)

	rows := make([]*domain.MerchantFeatures, 0, s.MerchantCount())
	for _, merchantID := range s.MerchantIDs() {
		gap, ok := gaps[merchantID]
		if !ok {
			if a.join == domain.JoinDropMissing {
				continue
			}
			gap = 0 // impute-zero
		}

		txs, err := s.Transactions(merchantID)
		if err != nil {
			return nil, err
		}

		rows = append(rows, &domain.MerchantFeatures{
			MerchantID:             merchantID,
			PeakHour:               peak[merchantID],
			AvgTransactionsPerHour: perHour[merchantID],
			HighValueRatio:         highValue[merchantID],
			LateNightFrequency:     lateNight[merchantID],
			UniqueCustomerCount:    customers[merchantID],
			TimeDiffMinutes:        gap,
			AvgAmount:              amounts[merchantID].Mean,
			VarAmount:              amounts[merchantID].Variance,
			TransactionCount:       len(txs),
		})
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: join policy %q dropped every merchant", domain.ErrEmptyInput, a.join)
	}

	return rows, nil
}
