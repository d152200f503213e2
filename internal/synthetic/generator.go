// Package synthetic generates labeled transaction batches for
// benchmarking and tests. Anomalous merchants carry a Pattern label so
// downstream evaluation can compare verdicts against ground truth.
package synthetic

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Anomaly pattern labels.
const (
	PatternLateNight             = "late_night"
	PatternHighVelocity          = "high_velocity"
	PatternCustomerConcentration = "customer_concentration"
)

// Config controls dataset shape.
type Config struct {
	// Merchants is the total number of merchants to generate.
	Merchants int

	// AnomalousRatio is the fraction of merchants given an anomaly
	// pattern. The rest get normal daily traffic.
	AnomalousRatio float64

	// Days is the size of the activity window, one transaction per day
	// for normal merchants.
	Days int

	// Seed fixes the random stream for reproducible datasets.
	Seed int64
}

// DefaultConfig mirrors the historical benchmark dataset: 30 days of
// activity with one in five merchants anomalous.
func DefaultConfig() Config {
	return Config{
		Merchants:      100,
		AnomalousRatio: 0.2,
		Days:           30,
		Seed:           time.Now().UnixNano(),
	}
}

// Generator produces labeled synthetic transactions.
type Generator struct {
	cfg  Config
	rng  *rand.Rand
	now  time.Time
	seen map[string]bool
}

// NewGenerator creates a generator with the given config.
func NewGenerator(cfg Config) *Generator {
	if cfg.Merchants <= 0 {
		cfg.Merchants = 100
	}
	if cfg.AnomalousRatio < 0 || cfg.AnomalousRatio > 1 {
		cfg.AnomalousRatio = 0.2
	}
	if cfg.Days <= 0 {
		cfg.Days = 30
	}
	return &Generator{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		now:  time.Now().UTC().Truncate(time.Second),
		seen: make(map[string]bool),
	}
}

// Generate builds the full dataset: normal merchants first, then
// anomalous merchants with a randomly assigned pattern.
func (g *Generator) Generate(tenantID string) []*domain.Transaction {
	numAnomalous := int(float64(g.cfg.Merchants) * g.cfg.AnomalousRatio)
	numNormal := g.cfg.Merchants - numAnomalous

	patterns := []string{PatternLateNight, PatternHighVelocity, PatternCustomerConcentration}

	var txs []*domain.Transaction
	for i := 0; i < numNormal; i++ {
		txs = append(txs, g.normalMerchant(tenantID, g.merchantID())...)
	}
	for i := 0; i < numAnomalous; i++ {
		pattern := patterns[g.rng.Intn(len(patterns))]
		txs = append(txs, g.anomalousMerchant(tenantID, g.merchantID(), pattern)...)
	}
	return txs
}

// normalMerchant emits one modest daytime transaction per day across
// the window, each from a different customer.
func (g *Generator) normalMerchant(tenantID, merchantID string) []*domain.Transaction {
	txs := make([]*domain.Transaction, 0, g.cfg.Days)
	for d := 0; d < g.cfg.Days; d++ {
		day := g.now.AddDate(0, 0, -g.rng.Intn(g.cfg.Days))
		// Daytime hours only; the odd-hour and late-night signals must
		// stay quiet for normal merchants.
		ts := time.Date(day.Year(), day.Month(), day.Day(), 9+g.rng.Intn(10), g.rng.Intn(60), 0, 0, time.UTC)
		txs = append(txs, &domain.Transaction{
			ID:         g.transactionID(),
			TenantID:   tenantID,
			MerchantID: merchantID,
			CustomerID: g.customerID(),
			Timestamp:  ts,
			Amount:     g.amount(100, 1000),
			Status:     "completed",
		})
	}
	return txs
}

// anomalousMerchant emits transactions shaped by the given pattern.
func (g *Generator) anomalousMerchant(tenantID, merchantID, pattern string) []*domain.Transaction {
	txs := make([]*domain.Transaction, 0, g.cfg.Days)
	repeatCustomer := g.customerID()

	for d := 0; d < g.cfg.Days; d++ {
		tx := &domain.Transaction{
			ID:         g.transactionID(),
			TenantID:   tenantID,
			MerchantID: merchantID,
			Status:     "completed",
			Pattern:    pattern,
		}

		switch pattern {
		case PatternCustomerConcentration:
			// Same customer repeats, all in the same instant.
			tx.CustomerID = repeatCustomer
			tx.Timestamp = g.now
			tx.Amount = g.amount(3000, 15000)

		case PatternLateNight:
			hour := g.lateNightHour()
			tx.CustomerID = g.customerID()
			tx.Timestamp = time.Date(g.now.Year(), g.now.Month(), g.now.Day(), hour, g.rng.Intn(60), 0, 0, time.UTC)
			tx.Amount = g.amount(5000, 20000)

		case PatternHighVelocity:
			// All transactions collapse into one (merchant, hour) bucket.
			tx.CustomerID = g.customerID()
			tx.Timestamp = g.now
			tx.Amount = g.amount(2000, 10000)

		default:
			tx.CustomerID = g.customerID()
			tx.Timestamp = g.now
			tx.Amount = g.amount(1000, 5000)
		}

		txs = append(txs, tx)
	}
	return txs
}

// lateNightHour picks from 23:00 or 00:00-04:00.
func (g *Generator) lateNightHour() int {
	hours := []int{23, 0, 1, 2, 3, 4}
	return hours[g.rng.Intn(len(hours))]
}

func (g *Generator) amount(lo, hi float64) float64 {
	v := lo + g.rng.Float64()*(hi-lo)
	return float64(int(v*100)) / 100
}

// merchantID and transactionID must be unique within a dataset:
// a collision would merge two merchants' activity.
func (g *Generator) merchantID() string {
	return g.unique(func() string {
		return fmt.Sprintf("M%04d", 1000+g.rng.Intn(9000))
	})
}

func (g *Generator) customerID() string {
	return fmt.Sprintf("C%04d", 1000+g.rng.Intn(9000))
}

func (g *Generator) transactionID() string {
	return g.unique(func() string {
		return fmt.Sprintf("T%06d", 100000+g.rng.Intn(900000))
	})
}

func (g *Generator) unique(gen func() string) string {
	for {
		id := gen()
		if !g.seen[id] {
			g.seen[id] = true
			return id
		}
	}
}
