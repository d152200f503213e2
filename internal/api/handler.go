package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/pipeline"
	"github.com/opensource-finance/harrier/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *rules.Engine
	pipe    *pipeline.Pipeline
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, pipe *pipeline.Pipeline, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  engine,
		pipe:    pipe,
		version: version,
	}
}

// featureCacheTTL bounds how long a computed feature row may be served
// before it is recomputed from stored transactions.
const featureCacheTTL = 5 * time.Minute

// Predict handles POST /predict: scores a single pre-assembled
// feature vector against the loaded model.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in domain.FeatureVectorInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if !h.pipe.HasModel() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "model unavailable",
		})
		return
	}

	verdict, err := h.pipe.AnomalyScorer().Score(ctx, in.Vector())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

// ScoreRequest is the request body for POST /score.
type ScoreRequest struct {
	Transactions []*domain.TransactionInput `json:"transactions"`
}

// ScoreAccepted is the response for an async POST /score.
type ScoreAccepted struct {
	Status  string `json:"status"`
	TraceID string `json:"trace_id"`
}

// Score handles POST /score: runs a transaction batch through the full
// feature/rule/model pipeline. With ?async=true the batch is published
// to the event bus and scored by a worker instead.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions must not be empty",
		})
		return
	}

	if r.URL.Query().Get("async") == "true" {
		if h.bus == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "event bus not available",
			})
			return
		}

		payload, err := json.Marshal(map[string]any{
			"tenant_id":    tenantID,
			"trace_id":     traceID,
			"transactions": req.Transactions,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to encode batch",
			})
			return
		}

		if err := h.bus.Publish(ctx, tenantID, domain.TopicBatchIngested, payload); err != nil {
			slog.Error("failed to publish batch", "trace_id", traceID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to enqueue batch",
			})
			return
		}

		writeJSON(w, http.StatusAccepted, ScoreAccepted{
			Status:  "accepted",
			TraceID: traceID,
		})
		return
	}

	txs := make([]*domain.Transaction, 0, len(req.Transactions))
	for _, in := range req.Transactions {
		tx, err := in.ToTransaction(tenantID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		txs = append(txs, tx)
	}

	verdict, err := h.pipe.Run(ctx, tenantID, traceID, txs)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveTransactions(ctx, tenantID, txs); err != nil {
			slog.Error("failed to save transactions", "batch_id", verdict.ID, "error", err)
		}
		if err := h.repo.SaveBatchVerdict(ctx, tenantID, verdict); err != nil {
			slog.Error("failed to save batch verdict", "batch_id", verdict.ID, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(verdict)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicVerdictCreated, payload); err != nil {
			slog.Error("failed to publish verdict", "batch_id", verdict.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, verdict)
}

// GetMerchantFeatures handles GET /merchants/{id}/features: assembles
// the feature row for one merchant from stored transactions. Results
// are cached per tenant.
func (h *Handler) GetMerchantFeatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	merchantID := chi.URLParam(r, "id")

	if merchantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "merchant id is required",
		})
		return
	}

	if h.cache != nil {
		if cached, err := h.cache.GetFeatures(ctx, tenantID, merchantID); err == nil && cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	since := time.Time{}
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC3339",
			})
			return
		}
		since = parsed
	}

	txs, err := h.repo.GetTransactionsByMerchant(ctx, tenantID, merchantID, since)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(txs) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no transactions for merchant",
		})
		return
	}

	rows, err := h.pipe.Features(txs)
	if err != nil {
		writeError(w, err)
		return
	}

	for _, row := range rows {
		if row.MerchantID != merchantID {
			continue
		}
		if h.cache != nil {
			if err := h.cache.SetFeatures(ctx, tenantID, row, featureCacheTTL); err != nil {
				slog.Warn("failed to cache features", "merchant_id", merchantID, "error", err)
			}
		}
		writeJSON(w, http.StatusOK, row)
		return
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "no features for merchant",
	})
}

// GetVerdict retrieves a batch verdict by ID.
func (h *Handler) GetVerdict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	verdictID := chi.URLParam(r, "id")

	if verdictID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "verdict id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	verdict, err := h.repo.GetBatchVerdict(ctx, tenantID, verdictID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all loaded supplemental rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a supplemental rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Enabled     bool   `json:"enabled"`
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateRule creates a new supplemental rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.engine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, GlobalTenantID, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all supplemental rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps domain sentinel errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrEmptyInput), errors.Is(err, domain.ErrInvalidConfig):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSchemaMismatch):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrModelUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
