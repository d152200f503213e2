package domain

import (
	"errors"
)

// Error taxonomy for the scoring core. Callers match with errors.Is;
// producers wrap with fmt.Errorf("...: %w", Err...) to attach context.
var (
	// ErrEmptyInput marks a scoring request with no transactions, or a
	// requested merchant absent from the batch. Extractors never return
	// zero-valued rows that could pass for real measurements.
	ErrEmptyInput = errors.New("empty input")

	// ErrSchemaMismatch marks a feature vector whose size or order
	// disagrees with what the model artifacts expect.
	ErrSchemaMismatch = errors.New("feature schema mismatch")

	// ErrModelUnavailable marks a missing scorer artifact or a model
	// call that failed or timed out.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrInvalidConfig marks a threshold, window, or policy outside its
	// valid range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound marks a missing persisted record.
	ErrNotFound = errors.New("record not found")
)
