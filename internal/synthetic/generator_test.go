package synthetic

import (
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func generate(t *testing.T, cfg Config) []*domain.Transaction {
	t.Helper()
	txs := NewGenerator(cfg).Generate("tenant-001")
	if len(txs) == 0 {
		t.Fatal("expected transactions")
	}
	return txs
}

func groupByMerchant(txs []*domain.Transaction) map[string][]*domain.Transaction {
	out := make(map[string][]*domain.Transaction)
	for _, tx := range txs {
		out[tx.MerchantID] = append(out[tx.MerchantID], tx)
	}
	return out
}

func TestDatasetShape(t *testing.T) {
	cfg := Config{Merchants: 50, AnomalousRatio: 0.2, Days: 30, Seed: 42}
	txs := generate(t, cfg)

	byMerchant := groupByMerchant(txs)
	if len(byMerchant) != 50 {
		t.Fatalf("expected 50 merchants, got %d", len(byMerchant))
	}

	// Every merchant gets one transaction per day of the window.
	for id, merchantTxs := range byMerchant {
		if len(merchantTxs) != 30 {
			t.Errorf("merchant %s: expected 30 transactions, got %d", id, len(merchantTxs))
		}
	}

	anomalous := 0
	for _, merchantTxs := range byMerchant {
		if merchantTxs[0].Pattern != "" {
			anomalous++
		}
	}
	if anomalous != 10 {
		t.Errorf("expected 10 anomalous merchants, got %d", anomalous)
	}
}

func TestSeedDeterminism(t *testing.T) {
	cfg := Config{Merchants: 20, AnomalousRatio: 0.25, Days: 10, Seed: 7}

	txs1 := NewGenerator(cfg).Generate("tenant-001")
	txs2 := NewGenerator(cfg).Generate("tenant-001")

	if len(txs1) != len(txs2) {
		t.Fatalf("lengths differ: %d vs %d", len(txs1), len(txs2))
	}
	for i := range txs1 {
		a, b := txs1[i], txs2[i]
		if a.ID != b.ID || a.MerchantID != b.MerchantID || a.CustomerID != b.CustomerID ||
			a.Amount != b.Amount || a.Pattern != b.Pattern {
			t.Fatalf("transaction %d differs:\n%+v\n%+v", i, a, b)
		}
	}
}

func TestUniqueIDs(t *testing.T) {
	cfg := Config{Merchants: 100, AnomalousRatio: 0.2, Days: 30, Seed: 1}
	txs := generate(t, cfg)

	txIDs := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if txIDs[tx.ID] {
			t.Fatalf("duplicate transaction id %s", tx.ID)
		}
		txIDs[tx.ID] = true
	}
}

func TestPatternShapes(t *testing.T) {
	cfg := Config{Merchants: 100, AnomalousRatio: 0.5, Days: 30, Seed: 99}
	txs := generate(t, cfg)

	for pattern, merchantTxs := range patternsByExample(txs) {
		switch pattern {
		case PatternLateNight:
			for _, tx := range merchantTxs {
				h := tx.Hour()
				if h != 23 && h > 4 {
					t.Errorf("late_night transaction at hour %d", h)
				}
				if tx.Amount < 5000 || tx.Amount > 20000 {
					t.Errorf("late_night amount %.2f out of range", tx.Amount)
				}
			}

		case PatternHighVelocity:
			first := merchantTxs[0].Timestamp
			for _, tx := range merchantTxs {
				if !tx.Timestamp.Equal(first) {
					t.Error("high_velocity transactions must share one instant")
				}
				if tx.Amount < 2000 || tx.Amount > 10000 {
					t.Errorf("high_velocity amount %.2f out of range", tx.Amount)
				}
			}

		case PatternCustomerConcentration:
			customer := merchantTxs[0].CustomerID
			for _, tx := range merchantTxs {
				if tx.CustomerID != customer {
					t.Error("customer_concentration transactions must share one customer")
				}
				if tx.Amount < 3000 || tx.Amount > 15000 {
					t.Errorf("customer_concentration amount %.2f out of range", tx.Amount)
				}
			}
		}
	}
}

// patternsByExample picks one merchant's transactions per pattern.
func patternsByExample(txs []*domain.Transaction) map[string][]*domain.Transaction {
	byMerchant := groupByMerchant(txs)
	out := make(map[string][]*domain.Transaction)
	for _, merchantTxs := range byMerchant {
		p := merchantTxs[0].Pattern
		if p == "" {
			continue
		}
		if _, ok := out[p]; !ok {
			out[p] = merchantTxs
		}
	}
	return out
}

func TestNormalMerchantsAreDaytime(t *testing.T) {
	cfg := Config{Merchants: 30, AnomalousRatio: 0, Days: 30, Seed: 5}
	txs := generate(t, cfg)

	for _, tx := range txs {
		if tx.Pattern != "" {
			t.Fatalf("expected no anomalous merchants, got pattern %q", tx.Pattern)
		}
		if tx.Amount < 100 || tx.Amount > 1000 {
			t.Errorf("normal amount %.2f out of range", tx.Amount)
		}
		if h := tx.Hour(); h < 9 || h > 18 {
			t.Errorf("normal transaction outside business hours: %d", h)
		}
	}
}
