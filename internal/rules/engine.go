package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Engine evaluates operator-defined CEL rules against assembled merchant
// feature rows. It supplements the built-in Scorer: operators can flag
// feature-level patterns (e.g. "late_night_frequency > 0.5 &&
// unique_customer_count < 3") without a redeploy.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a CEL engine exposing the feature schema fields as
// variables.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("merchant_id", cel.StringType),
		cel.Variable("peak_hour", cel.IntType),
		cel.Variable("average_transactions_per_hour", cel.DoubleType),
		cel.Variable("high_value_transaction_ratio", cel.DoubleType),
		cel.Variable("late_night_frequency", cel.DoubleType),
		cel.Variable("unique_customer_count", cel.IntType),
		cel.Variable("time_diff_minutes", cel.DoubleType),
		cel.Variable("average_transaction_amount", cel.DoubleType),
		cel.Variable("variance_transaction_amount", cel.DoubleType),
		cel.Variable("transaction_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads all enabled rules.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules swaps in a fresh rule set (hot reload from the database).
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// EvaluateAll runs every loaded rule over every feature row, in parallel
// across rows with bounded concurrency. Each row is handled by exactly
// one worker. An expression error counts as not triggered.
func (e *Engine) EvaluateAll(ctx context.Context, rows []*domain.MerchantFeatures) []domain.SupplementalResult {
	e.mu.RLock()
	loaded := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		loaded = append(loaded, rule)
	}
	e.mu.RUnlock()

	if len(loaded) == 0 || len(rows) == 0 {
		return nil
	}

	results := make([][]domain.SupplementalResult, len(rows))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, row := range rows {
		wg.Add(1)
		go func(idx int, f *domain.MerchantFeatures) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			activation := map[string]any{
				"merchant_id":                   f.MerchantID,
				"peak_hour":                     int64(f.PeakHour),
				"average_transactions_per_hour": f.AvgTransactionsPerHour,
				"high_value_transaction_ratio":  f.HighValueRatio,
				"late_night_frequency":          f.LateNightFrequency,
				"unique_customer_count":         int64(f.UniqueCustomerCount),
				"time_diff_minutes":             f.TimeDiffMinutes,
				"average_transaction_amount":    f.AvgAmount,
				"variance_transaction_amount":   f.VarAmount,
				"transaction_count":             int64(f.TransactionCount),
			}

			rowResults := make([]domain.SupplementalResult, 0, len(loaded))
			for _, rule := range loaded {
				triggered := false
				out, _, err := rule.Program.Eval(activation)
				if err == nil {
					if b, ok := out.(types.Bool); ok {
						triggered = bool(b)
					}
				}
				rowResults = append(rowResults, domain.SupplementalResult{
					RuleID:     rule.Config.ID,
					RuleName:   rule.Config.Name,
					MerchantID: f.MerchantID,
					Triggered:  triggered,
				})
			}
			results[idx] = rowResults
		}(i, row)
	}

	wg.Wait()

	flat := make([]domain.SupplementalResult, 0, len(rows)*len(loaded))
	for _, rr := range results {
		flat = append(flat, rr...)
	}
	return flat
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		out = append(out, compiled.Config)
	}
	return out
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{Config: cfg, Program: program}, nil
}
