// Package worker provides async batch scoring for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/pipeline"
)

// Worker scores transaction batches asynchronously from the EventBus.
type Worker struct {
	bus  domain.EventBus
	repo domain.Repository
	pipe *pipeline.Pipeline

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = global subscription)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, pipe *pipeline.Pipeline) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		pipe:   pipe,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing batches for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicBatchIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicBatchIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processBatch(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicBatchIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processBatch(ctx, msg.TenantID, msg)
}

// BatchMessage is the message payload for async batch scoring.
type BatchMessage struct {
	TenantID     string                    `json:"tenant_id"`
	TraceID      string                    `json:"trace_id"`
	Transactions []*domain.TransactionInput `json:"transactions"`
}

// processBatch runs a batch through the scoring pipeline.
func (w *Worker) processBatch(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var batchMsg BatchMessage
	if err := json.Unmarshal(msg.Payload, &batchMsg); err != nil {
		slog.Error("failed to parse batch message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if batchMsg.TenantID != "" {
		tenantID = batchMsg.TenantID
	}

	traceID := batchMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing batch",
		"tenant_id", tenantID,
		"trace_id", traceID,
		"transaction_count", len(batchMsg.Transactions),
	)

	txs := make([]*domain.Transaction, 0, len(batchMsg.Transactions))
	for _, in := range batchMsg.Transactions {
		tx, err := in.ToTransaction(tenantID)
		if err != nil {
			slog.Error("invalid transaction in batch",
				"tenant_id", tenantID,
				"trace_id", traceID,
				"error", err,
			)
			return err
		}
		txs = append(txs, tx)
	}

	verdict, err := w.pipe.Run(ctx, tenantID, traceID, txs)
	if err != nil {
		slog.Error("batch scoring failed",
			"tenant_id", tenantID,
			"trace_id", traceID,
			"error", err,
		)
		return err
	}

	if w.repo != nil {
		if err := w.repo.SaveTransactions(ctx, tenantID, txs); err != nil {
			slog.Error("failed to save transactions",
				"batch_id", verdict.ID,
				"error", err,
			)
		}
		if err := w.repo.SaveBatchVerdict(ctx, tenantID, verdict); err != nil {
			slog.Error("failed to save batch verdict",
				"batch_id", verdict.ID,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(verdict)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicVerdictCreated, resultPayload); err != nil {
		slog.Error("failed to publish verdict",
			"batch_id", verdict.ID,
			"error", err,
		)
	}

	slog.Info("batch processed",
		"batch_id", verdict.ID,
		"tenant_id", tenantID,
		"merchant_count", verdict.Metadata.MerchantCount,
		"anomalous_count", verdict.Metadata.AnomalousCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}
