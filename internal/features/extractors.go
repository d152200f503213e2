// Package features computes per-merchant aggregate statistics from a
// transaction batch and assembles them into fixed-order feature vectors.
package features

import (
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/store"
)

// lateNight reports whether an hour falls in the 23:00-04:59 window.
func lateNight(hour int) bool {
	return hour == 23 || hour < 5
}

// PeakHour returns each merchant's hour of day with the most
// transactions. Ties break to the lowest hour so the result is
// deterministic regardless of input order.
func PeakHour(s *store.Store) map[string]int {
	out := make(map[string]int, s.MerchantCount())
	s.Each(func(merchantID string, txs []*domain.Transaction) {
		var counts [24]int
		for _, tx := range txs {
			counts[tx.Hour()]++
		}
		peak, best := 0, 0
		for h, n := range counts {
			if n > best {
				peak, best = h, n
			}
		}
		out[merchantID] = peak
	})
	return out
}

// AvgTransactionsPerHour returns the mean of per-(merchant, hour-of-day)
// transaction counts, averaged over the hours the merchant was actually
// active in, not over all 24.
func AvgTransactionsPerHour(s *store.Store) map[string]float64 {
	out := make(map[string]float64, s.MerchantCount())
	s.Each(func(merchantID string, txs []*domain.Transaction) {
		var counts [24]int
		for _, tx := range txs {
			counts[tx.Hour()]++
		}
		activeHours := 0
		for _, n := range counts {
			if n > 0 {
				activeHours++
			}
		}
		out[merchantID] = float64(len(txs)) / float64(activeHours)
	})
	return out
}

// LateNightFrequency returns the fraction of each merchant's
// transactions whose hour falls in {23,0,1,2,3,4}. A merchant in the
// store always has at least one transaction, so the ratio is defined.
func LateNightFrequency(s *store.Store) map[string]float64 {
	out := make(map[string]float64, s.MerchantCount())
	s.Each(func(merchantID string, txs []*domain.Transaction) {
		late := 0
		for _, tx := range txs {
			if lateNight(tx.Hour()) {
				late++
			}
		}
		out[merchantID] = float64(late) / float64(len(txs))
	})
	return out
}

// AmountStats holds the per-merchant amount aggregates.
type AmountStats struct {
	Mean float64

	// Variance is the sample (n-1) variance, reported as 0 when the
	// merchant has fewer than two transactions.
	Variance float64
}

// AmountStatistics returns mean and sample variance of amount per merchant.
func AmountStatistics(s *store.Store) map[string]AmountStats {
	out := make(map[string]AmountStats, s.MerchantCount())
	s.Each(func(merchantID string, txs []*domain.Transaction) {
		var sum float64
		for _, tx := range txs {
			sum += tx.Amount
		}
		mean := sum / float64(len(txs))

		variance := 0.0
		if len(txs) > 1 {
			var sq float64
			for _, tx := range txs {
				d := tx.Amount - mean
				sq += d * d
			}
			variance = sq / float64(len(txs)-1)
		}

		out[merchantID] = AmountStats{Mean: mean, Variance: variance}
	})
	return out
}

// UniqueCustomerCount returns the distinct customer id cardinality per
// merchant.
func UniqueCustomerCount(s *store.Store) map[string]int {
	out := make(map[string]int, s.MerchantCount())
	s.Each(func(merchantID string, txs []*domain.Transaction) {
		seen := make(map[string]struct{}, len(txs))
		for _, tx := range txs {
			seen[tx.CustomerID] = struct{}{}
		}
		out[merchantID] = len(seen)
	})
	return out
}

// HighValueRatio returns the fraction of each merchant's transactions
// with amount strictly greater than the threshold.
func HighValueRatio(s *store.Store, threshold float64) map[string]float64 {
	out := make(map[string]float64, s.MerchantCount())
	s.Each(func(merchantID string, txs []*domain.Transaction) {
		high := 0
		for _, tx := range txs {
			if tx.Amount > threshold {
				high++
			}
		}
		out[merchantID] = float64(high) / float64(len(txs))
	})
	return out
}

// AvgTransactionGap returns the mean gap in minutes between consecutive
// transactions, per merchant, transactions ordered by timestamp.
// Merchants with a single transaction have no gap and are absent from
// the result; the assembler's join policy decides their fate.
func AvgTransactionGap(s *store.Store) map[string]float64 {
	out := make(map[string]float64)
	s.Each(func(merchantID string, txs []*domain.Transaction) {
		if len(txs) < 2 {
			return
		}
		var total float64
		for i := 1; i < len(txs); i++ {
			total += txs[i].Timestamp.Sub(txs[i-1].Timestamp).Minutes()
		}
		out[merchantID] = total / float64(len(txs)-1)
	})
	return out
}
