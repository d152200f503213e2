// Benchmark tool for testing Harrier against labeled synthetic data.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -merchants 500
//
// This tool:
//   1. Generates synthetic merchant transactions with known anomaly labels
//   2. Sends them to Harrier in batches for scoring
//   3. Compares Harrier's merchant verdicts with the ground-truth labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/synthetic"
)

// ScoreRequest is the Harrier API request format.
type ScoreRequest struct {
	Transactions []*domain.TransactionInput `json:"transactions"`
}

// MerchantResult is the per-merchant slice of the API response.
type MerchantResult struct {
	MerchantID  string   `json:"merchant_id"`
	IsAnomalous bool     `json:"is_anomalous"`
	Reasons     []string `json:"reasons"`
}

// ScoreResponse is the Harrier API response format.
type ScoreResponse struct {
	ID        string           `json:"id"`
	Merchants []MerchantResult `json:"merchants"`
}

// Metrics tracks merchant-level benchmark results.
type Metrics struct {
	TruePositives  int64 // Labeled merchant flagged anomalous
	FalsePositives int64 // Normal merchant flagged anomalous
	TrueNegatives  int64 // Normal merchant passed
	FalseNegatives int64 // Labeled merchant missed

	TotalMerchants int64
	TotalLabeled   int64
	TotalNormal    int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	merchants := flag.Int("merchants", 500, "Number of merchants to generate")
	ratio := flag.Float64("ratio", 0.2, "Fraction of anomalous merchants (0.0-1.0)")
	days := flag.Int("days", 30, "Activity window in days")
	seed := flag.Int64("seed", 42, "Random seed for reproducible datasets")
	batchSize := flag.Int("batch", 50, "Merchants per scoring batch")
	workers := flag.Int("workers", 4, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each merchant result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        HARRIER BENCHMARK - Merchant Anomaly Detection         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nHarrier URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Merchants:   %d\n", *merchants)
	fmt.Printf("Ratio:       %.2f\n", *ratio)
	fmt.Printf("Days:        %d\n", *days)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Printf("Batch Size:  %d\n", *batchSize)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  cd harrier && go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	// Generate labeled dataset
	fmt.Printf("\nGenerating %d merchants...\n", *merchants)
	gen := synthetic.NewGenerator(synthetic.Config{
		Merchants:      *merchants,
		AnomalousRatio: *ratio,
		Days:           *days,
		Seed:           *seed,
	})
	txs := gen.Generate(*tenantID)

	// Ground-truth labels: a merchant is anomalous if any of its
	// transactions carries a pattern label.
	labels := make(map[string]string)
	byMerchant := make(map[string][]*domain.Transaction)
	for _, tx := range txs {
		byMerchant[tx.MerchantID] = append(byMerchant[tx.MerchantID], tx)
		if tx.Pattern != "" {
			labels[tx.MerchantID] = tx.Pattern
		}
	}

	merchantIDs := make([]string, 0, len(byMerchant))
	for id := range byMerchant {
		merchantIDs = append(merchantIDs, id)
	}
	sort.Strings(merchantIDs)

	fmt.Printf("✓ Generated %d transactions across %d merchants\n", len(txs), len(merchantIDs))
	fmt.Printf("  - Anomalous: %d (%.2f%%)\n", len(labels), 100*float64(len(labels))/float64(len(merchantIDs)))
	fmt.Printf("  - Normal:    %d (%.2f%%)\n", len(merchantIDs)-len(labels), 100*float64(len(merchantIDs)-len(labels))/float64(len(merchantIDs)))

	// Split merchants into batches
	var batches [][]*domain.TransactionInput
	for i := 0; i < len(merchantIDs); i += *batchSize {
		end := i + *batchSize
		if end > len(merchantIDs) {
			end = len(merchantIDs)
		}
		var batch []*domain.TransactionInput
		for _, id := range merchantIDs[i:end] {
			for _, tx := range byMerchant[id] {
				batch = append(batch, &domain.TransactionInput{
					ID:         tx.ID,
					MerchantID: tx.MerchantID,
					CustomerID: tx.CustomerID,
					Timestamp:  tx.Timestamp.Format(time.RFC3339),
					Amount:     tx.Amount,
					Status:     tx.Status,
					Pattern:    tx.Pattern,
				})
			}
		}
		batches = append(batches, batch)
	}

	fmt.Printf("\nRunning benchmark: %d batches, %d workers...\n", len(batches), *workers)
	startTime := time.Now()
	metrics := runBenchmark(batches, labels, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func runBenchmark(batches [][]*domain.TransactionInput, labels map[string]string, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan []*domain.TransactionInput, len(batches))
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for batch := range work {
				start := time.Now()
				result, err := scoreBatch(client, baseURL, tenantID, batch)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: batch of %d txs -> %v\n", len(batch), err)
					}
					continue
				}

				for _, mv := range result.Merchants {
					atomic.AddInt64(&metrics.TotalMerchants, 1)

					pattern, labeled := labels[mv.MerchantID]
					if labeled {
						atomic.AddInt64(&metrics.TotalLabeled, 1)
					} else {
						atomic.AddInt64(&metrics.TotalNormal, 1)
					}

					predicted := mv.IsAnomalous
					if predicted && labeled {
						atomic.AddInt64(&metrics.TruePositives, 1)
					} else if predicted && !labeled {
						atomic.AddInt64(&metrics.FalsePositives, 1)
					} else if !predicted && !labeled {
						atomic.AddInt64(&metrics.TrueNegatives, 1)
					} else {
						atomic.AddInt64(&metrics.FalseNegatives, 1)
					}

					if verbose {
						status := "✓"
						if predicted != labeled {
							status = "✗"
						}
						fmt.Printf("%s %-6s | Pattern: %-22s | Flagged: %-5v | Reasons: %v\n",
							status, mv.MerchantID, orDash(pattern), predicted, mv.Reasons)
					}
				}
			}
		}()
	}

	for _, batch := range batches {
		work <- batch
	}
	close(work)

	wg.Wait()

	return metrics
}

func scoreBatch(client *http.Client, baseURL, tenantID string, batch []*domain.TransactionInput) (*ScoreResponse, error) {
	body, err := json.Marshal(ScoreRequest{Transactions: batch})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Merchants Scored:  %d\n", m.TotalMerchants)
	fmt.Printf("   Labeled Anomalous: %d\n", m.TotalLabeled)
	fmt.Printf("   Labeled Normal:    %d\n", m.TotalNormal)
	fmt.Printf("   Batch Errors:      %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                 Anomalous     Normal")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  A  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           N  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged merchants, how many were labeled)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of labeled merchants, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalLabeled > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalLabeled) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalLabeled) * 100
		fmt.Printf("   Anomalies Detected: %d / %d (%.2f%%)\n", m.TruePositives, m.TotalLabeled, detectionRate)
		fmt.Printf("   Anomalies Missed:   %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalLabeled, missRate)
	}
	if m.TotalNormal > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalNormal) * 100
		fmt.Printf("   False Alarms:       %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNormal, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalMerchants > 0 {
		tps := float64(m.TotalMerchants) / duration.Seconds()
		fmt.Printf("   Throughput:       %.2f merchants/sec\n", tps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most anomalous merchants")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some anomalies")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant anomalies being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most anomalies are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
