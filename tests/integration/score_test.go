//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Harrier merchant
// anomaly scoring engine.
//
// These tests verify the COMPLETE scoring pipeline:
//
//	Transactions → Features → Rule Scores → Model Score → Combined Verdict
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. BATCH: A set of transactions scored together. Features are computed
//    per merchant from the batch alone; nothing external leaks in.
//
// 2. RULE SCORES (per merchant, 0-3):
//   - high_velocity: more than 3 transactions in one (merchant, hour) bucket
//   - odd_hour: activity before 09:00 or after 18:00
//   - customer_concentration: one customer appearing 2+ times
//
// 3. MODEL SCORE: reconstruction error of the normalized feature vector.
//    Above the calibrated threshold → model flag. Servers without a
//    provisioned model artifact run rules-only.
//
// 4. VERDICT: A merchant is anomalous when EITHER the model flags it OR
//    its rolled-up rule score exceeds the rule threshold (default 1) OR
//    a supplemental CEL rule triggers.
//
// The target server needs no seeded rules: the three built-in rule
// signals always run. Tests marked "model" tolerate rules-only servers.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("HARRIER_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// ============================================================================
// API Request/Response Types (matching Harrier's API contract)
// ============================================================================

// TransactionInput is one transaction in a POST /score batch.
type TransactionInput struct {
	ID         string  `json:"transaction_id"`
	MerchantID string  `json:"merchant_id"`
	CustomerID string  `json:"customer_id"`
	Timestamp  string  `json:"timestamp"`
	Amount     float64 `json:"amount"`
}

// ScoreRequest is the body sent to POST /score.
type ScoreRequest struct {
	Transactions []TransactionInput `json:"transactions"`
}

// MerchantVerdict is one merchant's combined verdict.
type MerchantVerdict struct {
	MerchantID   string   `json:"merchant_id"`
	AnomalyScore float64  `json:"anomaly_score"`
	Threshold    float64  `json:"threshold"`
	ModelFlag    bool     `json:"model_flag"`
	ModelScored  bool     `json:"model_scored"`
	RuleScore    int      `json:"rule_anomaly_score"`
	RuleFlag     bool     `json:"rule_flag"`
	IsAnomalous  bool     `json:"is_anomalous"`
	Reasons      []string `json:"reasons"`
}

// BatchVerdict is what POST /score returns.
type BatchVerdict struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenant_id"`
	Merchants []MerchantVerdict `json:"merchants"`
	Metadata  BatchMetadata     `json:"metadata"`
}

type BatchMetadata struct {
	TraceID          string `json:"trace_id"`
	TransactionCount int    `json:"transaction_count"`
	MerchantCount    int    `json:"merchant_count"`
	AnomalousCount   int    `json:"anomalous_count"`
	TotalMs          int64  `json:"total_ms"`
	EngineVersion    string `json:"engine_version"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func score(t *testing.T, config TestConfig, req ScoreRequest) BatchVerdict {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/score", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result BatchVerdict
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}

	return result
}

func merchantVerdict(t *testing.T, batch BatchVerdict, merchantID string) MerchantVerdict {
	t.Helper()
	for _, m := range batch.Merchants {
		if m.MerchantID == merchantID {
			return m
		}
	}
	t.Fatalf("merchant %s missing from verdict", merchantID)
	return MerchantVerdict{}
}

// daytimeTx builds one modest business-hours transaction.
func daytimeTx(id, merchant, customer string, day, hour int, amount float64) TransactionInput {
	return TransactionInput{
		ID:         id,
		MerchantID: merchant,
		CustomerID: customer,
		Timestamp:  fmt.Sprintf("2025-06-%02dT%02d:00:00Z", day, hour),
		Amount:     amount,
	}
}

// ============================================================================
// SCENARIO 1: Normal Merchant (No Anomaly)
// ============================================================================

func TestNormalBatch_NoAnomaly(t *testing.T) {
	/*
	   SCENARIO: A merchant with quiet daytime traffic - one modest
	   transaction per day, each from a different customer.

	   EXPECTED BEHAVIOR:
	   - high_velocity: 1 transaction per hour bucket → no flag
	   - odd_hour: all business hours → no flag
	   - customer_concentration: all customers distinct → no flag
	   - rule score 0, not above the rule threshold

	   FINAL DECISION: merchant is not anomalous.
	*/
	config := getTestConfig()

	req := ScoreRequest{
		Transactions: []TransactionInput{
			daytimeTx("T900001", "M9001", "C9001", 1, 10, 450),
			daytimeTx("T900002", "M9001", "C9002", 2, 14, 120),
			daytimeTx("T900003", "M9001", "C9003", 3, 11, 800),
			daytimeTx("T900004", "M9001", "C9004", 4, 16, 230),
		},
	}

	result := score(t, config, req)

	m := merchantVerdict(t, result, "M9001")
	if m.RuleScore != 0 {
		t.Errorf("Expected rule score 0 for normal merchant, got %d", m.RuleScore)
	}
	if m.RuleFlag {
		t.Error("Expected no rule flag for normal merchant")
	}

	// A well-calibrated model should not flag quiet daytime traffic
	// either; rules-only servers trivially satisfy this.
	if m.IsAnomalous && !m.ModelFlag {
		t.Errorf("Expected normal merchant to pass, got %+v", m)
	}

	t.Logf("✓ Normal batch passed: rule_score=%d, anomalous=%v", m.RuleScore, m.IsAnomalous)
}

// ============================================================================
// SCENARIO 2: High Velocity (Merchant-Wide Flag)
// ============================================================================

func TestHighVelocity_FlagsWholeMerchant(t *testing.T) {
	/*
	   SCENARIO: Four transactions in the 10:00 hour plus one at 15:00.

	   EXPECTED BEHAVIOR:
	   - The 10:00 bucket holds 4 transactions: 4 > 3 → velocity fires
	   - The flag is merchant-wide: the lone 15:00 transaction belongs to
	     a flagged merchant even though its own bucket is quiet
	   - Rule score includes the velocity point

	   WHY THIS MATTERS:
	   Velocity is a property of the merchant's busiest hour, not of the
	   individual transaction being looked at.
	*/
	config := getTestConfig()

	req := ScoreRequest{
		Transactions: []TransactionInput{
			daytimeTx("T910001", "M9101", "C9101", 1, 10, 300),
			daytimeTx("T910002", "M9101", "C9102", 1, 10, 310),
			daytimeTx("T910003", "M9101", "C9103", 1, 10, 320),
			daytimeTx("T910004", "M9101", "C9104", 1, 10, 330),
			daytimeTx("T910005", "M9101", "C9105", 1, 15, 340),
		},
	}

	result := score(t, config, req)

	m := merchantVerdict(t, result, "M9101")
	if m.RuleScore < 1 {
		t.Errorf("Expected velocity point in rule score, got %d", m.RuleScore)
	}

	t.Logf("✓ High velocity detected: rule_score=%d, anomalous=%v", m.RuleScore, m.IsAnomalous)
}

func TestVelocityBoundary_ExactlyThreeIsQuiet(t *testing.T) {
	/*
	   SCENARIO: Exactly 3 transactions in one hour bucket.

	   EXPECTED BEHAVIOR:
	   - The velocity comparison is strict: 3 is NOT > 3 → no flag

	   WHY THIS TEST:
	   Boundary conditions catch off-by-one errors in threshold logic.
	*/
	config := getTestConfig()

	req := ScoreRequest{
		Transactions: []TransactionInput{
			daytimeTx("T920001", "M9201", "C9201", 1, 10, 300),
			daytimeTx("T920002", "M9201", "C9202", 1, 10, 310),
			daytimeTx("T920003", "M9201", "C9203", 1, 10, 320),
		},
	}

	result := score(t, config, req)

	m := merchantVerdict(t, result, "M9201")
	if m.RuleScore != 0 {
		t.Errorf("Expected rule score 0 at exactly 3 per hour, got %d", m.RuleScore)
	}

	t.Logf("✓ Boundary test passed: 3 per hour → rule_score=%d", m.RuleScore)
}

// ============================================================================
// SCENARIO 3: Compound Anomaly (Multiple Signals)
// ============================================================================

func TestCompoundAnomaly_Alert(t *testing.T) {
	/*
	   SCENARIO: One customer hammering a merchant at 02:00 - five large
	   transactions in the same late-night hour, all from the same card.

	   EXPECTED BEHAVIOR:
	   - high_velocity: 5 > 3 in one bucket → fires
	   - odd_hour: 02:00 is outside 09:00-18:00 → fires
	   - customer_concentration: same customer 5 times → fires
	   - rule score 3, above the default threshold of 1

	   FINAL DECISION: anomalous, regardless of model availability.

	   WHY THIS MATTERS:
	   This is the classic card-testing shape: stolen card numbers are
	   tried in rapid bursts at night through a single merchant.
	*/
	config := getTestConfig()

	txs := make([]TransactionInput, 5)
	for i := range txs {
		txs[i] = TransactionInput{
			ID:         fmt.Sprintf("T93000%d", i+1),
			MerchantID: "M9301",
			CustomerID: "C9301",
			Timestamp:  fmt.Sprintf("2025-06-01T02:%02d:00Z", i*5),
			Amount:     8000,
		}
	}

	result := score(t, config, ScoreRequest{Transactions: txs})

	m := merchantVerdict(t, result, "M9301")
	if m.RuleScore != 3 {
		t.Errorf("Expected rule score 3 for compound anomaly, got %d", m.RuleScore)
	}
	if !m.IsAnomalous {
		t.Errorf("Expected anomalous verdict, got %+v", m)
	}
	if len(m.Reasons) == 0 {
		t.Error("Expected reasons explaining the verdict")
	}

	t.Logf("✓ Compound anomaly alerted: rule_score=%d, reasons=%v", m.RuleScore, m.Reasons)
}

// ============================================================================
// SCENARIO 4: High Value Threshold Boundary
// ============================================================================

func TestHighValueBoundary(t *testing.T) {
	/*
	   SCENARIO: A merchant with one transaction at exactly $10,000 and
	   one at $10,001, then a features lookup.

	   EXPECTED BEHAVIOR:
	   - The high-value comparison is strict: $10,000 does not count,
	     $10,001 does → high_value_transaction_ratio = 0.5

	   WHAT WE'RE TESTING:
	   The feature boundary, via GET /merchants/{id}/features after the
	   batch is persisted by POST /score.
	*/
	config := getTestConfig()

	req := ScoreRequest{
		Transactions: []TransactionInput{
			daytimeTx("T940001", "M9401", "C9401", 1, 10, 10000),
			daytimeTx("T940002", "M9401", "C9402", 2, 14, 10001),
		},
	}
	score(t, config, req)

	httpReq, _ := http.NewRequest("GET", config.BaseURL+"/merchants/M9401/features", nil)
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var features struct {
		MerchantID     string  `json:"merchant_id"`
		HighValueRatio float64 `json:"high_value_transaction_ratio"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&features); err != nil {
		t.Fatalf("Failed to parse features: %v", err)
	}

	if features.HighValueRatio != 0.5 {
		t.Errorf("Expected high value ratio 0.5 ($10,000 excluded, $10,001 included), got %.2f",
			features.HighValueRatio)
	}

	t.Logf("✓ Boundary test passed: high_value_ratio=%.2f", features.HighValueRatio)
}

// ============================================================================
// SCENARIO 5: Determinism
// ============================================================================

func TestSameBatchTwice_SameVerdicts(t *testing.T) {
	/*
	   SCENARIO: The same batch scored twice.

	   EXPECTED BEHAVIOR:
	   - Per-merchant verdicts are identical across runs. Only the batch
	     id and timestamps differ.

	   WHY THIS MATTERS:
	   Scoring is a pure function of the batch; reproducibility is what
	   makes verdicts auditable.
	*/
	config := getTestConfig()

	req := ScoreRequest{
		Transactions: []TransactionInput{
			daytimeTx("T950001", "M9501", "C9501", 1, 10, 450),
			daytimeTx("T950002", "M9501", "C9501", 1, 10, 460),
			daytimeTx("T950003", "M9502", "C9502", 2, 14, 120),
		},
	}

	first := score(t, config, req)
	second := score(t, config, req)

	if len(first.Merchants) != len(second.Merchants) {
		t.Fatalf("Merchant counts differ: %d vs %d", len(first.Merchants), len(second.Merchants))
	}

	for i := range first.Merchants {
		a, b := first.Merchants[i], second.Merchants[i]
		if a.MerchantID != b.MerchantID || a.RuleScore != b.RuleScore ||
			a.AnomalyScore != b.AnomalyScore || a.IsAnomalous != b.IsAnomalous {
			t.Errorf("Merchant %d differs between runs:\n%+v\n%+v", i, a, b)
		}
	}

	t.Logf("✓ Determinism verified across %d merchants", len(first.Merchants))
}

// ============================================================================
// SCENARIO 6: Verdict Retrieval
// ============================================================================

func TestVerdictRetrieval(t *testing.T) {
	/*
	   SCENARIO: Score a batch, then fetch the stored verdict by id.

	   EXPECTED: GET /verdicts/{id} returns the same verdict.
	*/
	config := getTestConfig()

	req := ScoreRequest{
		Transactions: []TransactionInput{
			daytimeTx("T960001", "M9601", "C9601", 1, 10, 450),
		},
	}
	result := score(t, config, req)

	httpReq, _ := http.NewRequest("GET", config.BaseURL+"/verdicts/"+result.ID, nil)
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var stored BatchVerdict
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("Failed to parse stored verdict: %v", err)
	}

	if stored.ID != result.ID {
		t.Errorf("Expected verdict id %s, got %s", result.ID, stored.ID)
	}
	if len(stored.Merchants) != len(result.Merchants) {
		t.Errorf("Expected %d merchants, got %d", len(result.Merchants), len(stored.Merchants))
	}

	t.Logf("✓ Verdict retrieval passed: id=%s", stored.ID)
}

// ============================================================================
// SCENARIO 7: Input Validation
// ============================================================================

func TestEmptyBatch_Error(t *testing.T) {
	/*
	   SCENARIO: Request with an empty transactions array.

	   EXPECTED: HTTP 400 Bad Request
	*/
	config := getTestConfig()

	body, _ := json.Marshal(ScoreRequest{Transactions: []TransactionInput{}})
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/score", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty batch, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: empty batch → HTTP %d", resp.StatusCode)
}

func TestMissingTenantHeader_Error(t *testing.T) {
	/*
	   SCENARIO: Request without X-Tenant-ID header.

	   EXPECTED: HTTP 400 Bad Request (tenant is a required field, not auth).
	*/
	config := getTestConfig()

	body, _ := json.Marshal(ScoreRequest{
		Transactions: []TransactionInput{
			daytimeTx("T970001", "M9701", "C9701", 1, 10, 100),
		},
	})
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/score", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	// NO X-Tenant-ID header!

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 400 or 401 for missing tenant, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing tenant → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 8: Response Metadata Verification
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	/*
	   SCENARIO: Verify the verdict includes all required metadata.

	   This ensures the API contract is stable for clients.
	*/
	config := getTestConfig()

	req := ScoreRequest{
		Transactions: []TransactionInput{
			daytimeTx("T980001", "M9801", "C9801", 1, 10, 450),
			daytimeTx("T980002", "M9802", "C9802", 2, 14, 120),
		},
	}

	result := score(t, config, req)

	if result.ID == "" {
		t.Error("Missing batch id")
	}
	if result.TenantID != config.TenantID {
		t.Errorf("Expected tenant %s, got %s", config.TenantID, result.TenantID)
	}
	if result.Metadata.TraceID == "" {
		t.Error("Missing metadata.trace_id")
	}
	if result.Metadata.TransactionCount != 2 {
		t.Errorf("Expected transaction_count 2, got %d", result.Metadata.TransactionCount)
	}
	if result.Metadata.MerchantCount != 2 {
		t.Errorf("Expected merchant_count 2, got %d", result.Metadata.MerchantCount)
	}
	if result.Metadata.EngineVersion == "" {
		t.Error("Missing metadata.engine_version")
	}

	// Note: TotalMs can be 0 for very fast operations (sub-millisecond)
	if result.Metadata.TotalMs < 0 {
		t.Error("Invalid metadata.total_ms (negative)")
	}

	t.Logf("✓ Metadata complete: id=%s, trace=%s, engine=%s, totalMs=%d",
		result.ID[:8], result.Metadata.TraceID, result.Metadata.EngineVersion, result.Metadata.TotalMs)
}
