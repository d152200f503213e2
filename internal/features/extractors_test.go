package features

import (
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/store"
)

func tx(id, merchant, customer string, ts time.Time, amount float64) *domain.Transaction {
	return &domain.Transaction{
		ID:         id,
		MerchantID: merchant,
		CustomerID: customer,
		Timestamp:  ts,
		Amount:     amount,
		Status:     "completed",
	}
}

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 1, hour, min, 0, 0, time.UTC)
}

func mustStore(t *testing.T, txs []*domain.Transaction) *store.Store {
	t.Helper()
	s, err := store.New(txs)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return s
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPeakHourTieBreaksToLowestHour(t *testing.T) {
	// Two transactions at 14:00 and two at 9:00: tie breaks to 9.
	s := mustStore(t, []*domain.Transaction{
		tx("T1", "M1", "C1", at(14, 0), 100),
		tx("T2", "M1", "C2", at(14, 30), 100),
		tx("T3", "M1", "C3", at(9, 0), 100),
		tx("T4", "M1", "C4", at(9, 30), 100),
	})

	peak := PeakHour(s)
	if peak["M1"] != 9 {
		t.Errorf("expected peak hour 9 on tie, got %d", peak["M1"])
	}
}

func TestPeakHourDeterministicAcrossInputOrder(t *testing.T) {
	batch := []*domain.Transaction{
		tx("T1", "M1", "C1", at(23, 0), 100),
		tx("T2", "M1", "C2", at(2, 0), 100),
		tx("T3", "M1", "C3", at(2, 30), 100),
		tx("T4", "M1", "C4", at(23, 30), 100),
	}
	reversed := []*domain.Transaction{batch[3], batch[2], batch[1], batch[0]}

	p1 := PeakHour(mustStore(t, batch))
	p2 := PeakHour(mustStore(t, reversed))
	if p1["M1"] != p2["M1"] {
		t.Fatalf("peak hour depends on input order: %d vs %d", p1["M1"], p2["M1"])
	}
	if p1["M1"] != 2 {
		t.Errorf("expected peak hour 2 (tie 2 vs 23 breaks low), got %d", p1["M1"])
	}
}

func TestAvgTransactionsPerHourUsesActiveHours(t *testing.T) {
	// 3 transactions across 2 active hours: 3/2, not 3/24.
	s := mustStore(t, []*domain.Transaction{
		tx("T1", "M1", "C1", at(10, 0), 100),
		tx("T2", "M1", "C2", at(10, 30), 100),
		tx("T3", "M1", "C3", at(15, 0), 100),
	})

	avg := AvgTransactionsPerHour(s)
	if !almostEqual(avg["M1"], 1.5) {
		t.Errorf("expected 1.5 transactions per active hour, got %g", avg["M1"])
	}
}

func TestLateNightFrequencyBounds(t *testing.T) {
	// 23:00 and 04:59 are late night; 05:00 and 22:59 are not.
	s := mustStore(t, []*domain.Transaction{
		tx("T1", "M1", "C1", at(23, 0), 100),
		tx("T2", "M1", "C2", at(4, 59), 100),
		tx("T3", "M1", "C3", at(5, 0), 100),
		tx("T4", "M1", "C4", at(22, 59), 100),
	})

	freq := LateNightFrequency(s)
	if !almostEqual(freq["M1"], 0.5) {
		t.Errorf("expected late night frequency 0.5, got %g", freq["M1"])
	}
}

func TestAmountStatistics(t *testing.T) {
	s := mustStore(t, []*domain.Transaction{
		tx("T1", "M1", "C1", at(10, 0), 100),
		tx("T2", "M1", "C2", at(11, 0), 200),
		tx("T3", "M1", "C3", at(12, 0), 300),
	})

	stats := AmountStatistics(s)["M1"]
	if !almostEqual(stats.Mean, 200) {
		t.Errorf("expected mean 200, got %g", stats.Mean)
	}
	// Sample variance: (100² + 0 + 100²) / 2 = 10000
	if !almostEqual(stats.Variance, 10000) {
		t.Errorf("expected sample variance 10000, got %g", stats.Variance)
	}
}

func TestSingleTransactionVarianceIsZero(t *testing.T) {
	s := mustStore(t, []*domain.Transaction{
		tx("T1", "M1", "C1", at(10, 0), 500),
	})

	stats := AmountStatistics(s)["M1"]
	if stats.Variance != 0 {
		t.Errorf("expected variance 0 for single transaction, got %g", stats.Variance)
	}
	if !almostEqual(stats.Mean, 500) {
		t.Errorf("expected mean 500, got %g", stats.Mean)
	}
}

func TestUniqueCustomerCount(t *testing.T) {
	s := mustStore(t, []*domain.Transaction{
		tx("T1", "M1", "C1", at(10, 0), 100),
		tx("T2", "M1", "C1", at(11, 0), 100),
		tx("T3", "M1", "C2", at(12, 0), 100),
	})

	if n := UniqueCustomerCount(s)["M1"]; n != 2 {
		t.Errorf("expected 2 unique customers, got %d", n)
	}
}

func TestHighValueRatioIsStrictlyGreater(t *testing.T) {
	// A transaction exactly at the threshold does not count.
	s := mustStore(t, []*domain.Transaction{
		tx("T1", "M1", "C1", at(10, 0), 10000),
		tx("T2", "M1", "C2", at(11, 0), 10001),
	})

	ratio := HighValueRatio(s, 10000)["M1"]
	if !almostEqual(ratio, 0.5) {
		t.Errorf("expected high value ratio 0.5, got %g", ratio)
	}
}

func TestAvgTransactionGap(t *testing.T) {
	s := mustStore(t, []*domain.Transaction{
		tx("T1", "M1", "C1", at(10, 0), 100),
		tx("T2", "M1", "C2", at(10, 30), 100),
		tx("T3", "M1", "C3", at(11, 30), 100),
	})

	// Gaps: 30 min and 60 min -> mean 45.
	gap := AvgTransactionGap(s)
	if !almostEqual(gap["M1"], 45) {
		t.Errorf("expected mean gap 45 minutes, got %g", gap["M1"])
	}
}

func TestAvgTransactionGapAbsentForSingleTransaction(t *testing.T) {
	s := mustStore(t, []*domain.Transaction{
		tx("T1", "M1", "C1", at(10, 0), 100),
		tx("T2", "M2", "C1", at(10, 0), 100),
		tx("T3", "M2", "C2", at(11, 0), 100),
	})

	gaps := AvgTransactionGap(s)
	if _, ok := gaps["M1"]; ok {
		t.Error("expected single-transaction merchant to be absent from gap map")
	}
	if _, ok := gaps["M2"]; !ok {
		t.Error("expected two-transaction merchant to have a gap")
	}
}
