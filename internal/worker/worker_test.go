package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/pipeline"
)

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(domain.DefaultScoringConfig(), nil, nil, nil)
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	return p
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	pipe := newTestPipeline(t)

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, nil, pipe)

		if err := w.Start(Config{TenantIDs: []string{"tenant-001"}}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	})

	t.Run("ProcessBatch", func(t *testing.T) {
		w := NewWorker(eventBus, nil, pipe)

		if err := w.Start(Config{TenantIDs: []string{"tenant-test"}}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		var verdictReceived atomic.Bool
		var verdictPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicVerdictCreated, func(ctx context.Context, msg *domain.Message) error {
			verdictPayload = msg.Payload
			verdictReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		batchMsg := BatchMessage{
			TenantID: "tenant-test",
			TraceID:  "trace-001",
			Transactions: []*domain.TransactionInput{
				{
					ID:         "T100001",
					MerchantID: "M1001",
					CustomerID: "C2001",
					Timestamp:  "2025-06-01T10:00:00Z",
					Amount:     450.00,
				},
				{
					ID:         "T100002",
					MerchantID: "M1001",
					CustomerID: "C2002",
					Timestamp:  "2025-06-01T14:00:00Z",
					Amount:     120.00,
				},
			},
		}

		payload, _ := json.Marshal(batchMsg)
		err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicBatchIngested, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !verdictReceived.Load() {
			t.Fatal("expected verdict to be published")
		}

		var verdict domain.BatchVerdict
		if err := json.Unmarshal(verdictPayload, &verdict); err != nil {
			t.Fatalf("failed to parse verdict: %v", err)
		}

		if verdict.TenantID != "tenant-test" {
			t.Errorf("expected tenantID 'tenant-test', got '%s'", verdict.TenantID)
		}
		if verdict.Metadata.TraceID != "trace-001" {
			t.Errorf("expected traceID 'trace-001', got '%s'", verdict.Metadata.TraceID)
		}
		if verdict.Metadata.MerchantCount != 1 {
			t.Errorf("expected 1 merchant, got %d", verdict.Metadata.MerchantCount)
		}
		if verdict.Metadata.TransactionCount != 2 {
			t.Errorf("expected 2 transactions, got %d", verdict.Metadata.TransactionCount)
		}
	})

	t.Run("AnomalousBatchFlagged", func(t *testing.T) {
		w := NewWorker(eventBus, nil, pipe)

		if err := w.Start(Config{TenantIDs: []string{"tenant-anomaly"}}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		var verdictPayload atomic.Pointer[[]byte]

		eventBus.Subscribe(context.Background(), "tenant-anomaly", domain.TopicVerdictCreated, func(ctx context.Context, msg *domain.Message) error {
			p := msg.Payload
			verdictPayload.Store(&p)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		// Four transactions in the same hour trip the velocity rule,
		// all from one customer trip concentration.
		inputs := make([]*domain.TransactionInput, 4)
		for i := range inputs {
			inputs[i] = &domain.TransactionInput{
				ID:         fmt.Sprintf("T20000%d", i+1),
				MerchantID: "M2001",
				CustomerID: "C3001",
				Timestamp:  "2025-06-01T02:00:00Z",
				Amount:     8000,
			}
		}

		payload, _ := json.Marshal(BatchMessage{
			TenantID:     "tenant-anomaly",
			Transactions: inputs,
		})
		eventBus.Publish(context.Background(), "tenant-anomaly", domain.TopicBatchIngested, payload)

		time.Sleep(100 * time.Millisecond)

		stored := verdictPayload.Load()
		if stored == nil {
			t.Fatal("expected verdict to be published")
		}

		var verdict domain.BatchVerdict
		if err := json.Unmarshal(*stored, &verdict); err != nil {
			t.Fatalf("failed to parse verdict: %v", err)
		}

		if verdict.Metadata.AnomalousCount != 1 {
			t.Errorf("expected 1 anomalous merchant, got %d", verdict.Metadata.AnomalousCount)
		}
		if len(verdict.Merchants) != 1 || !verdict.Merchants[0].IsAnomalous {
			t.Errorf("expected M2001 flagged, got %+v", verdict.Merchants)
		}
	})

	t.Run("InvalidPayloadIgnored", func(t *testing.T) {
		w := NewWorker(eventBus, nil, pipe)

		if err := w.Start(Config{TenantIDs: []string{"tenant-bad"}}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		var verdictReceived atomic.Bool
		eventBus.Subscribe(context.Background(), "tenant-bad", domain.TopicVerdictCreated, func(ctx context.Context, msg *domain.Message) error {
			verdictReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		eventBus.Publish(context.Background(), "tenant-bad", domain.TopicBatchIngested, []byte("not json"))

		time.Sleep(100 * time.Millisecond)

		if verdictReceived.Load() {
			t.Error("expected no verdict for malformed payload")
		}
	})
}
