package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Reconstructor is the capability boundary to the learned model: it
// takes a normalized feature vector and returns the model's
// reconstruction of it. The scoring core computes the error itself, so
// the model stays a pure function with no knowledge of thresholds.
type Reconstructor interface {
	Reconstruct(ctx context.Context, vec []float64) ([]float64, error)
}

// StubReconstructor is a deterministic in-process reconstructor for the
// community tier and for tests. It returns the input shifted by a fixed
// per-feature offset, so reconstruction error is Offset² for every
// vector and verdicts are fully predictable.
type StubReconstructor struct {
	// Offset is added to every reconstructed feature. Zero makes the
	// stub a perfect model (error 0 for any input).
	Offset float64
}

// Reconstruct returns the input vector shifted by the configured offset.
func (s *StubReconstructor) Reconstruct(_ context.Context, vec []float64) ([]float64, error) {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v + s.Offset
	}
	return out, nil
}

// HTTPReconstructor calls an external reconstruction endpoint. Every
// call is bounded by the configured timeout; expiry or transport failure
// surfaces as ModelUnavailable rather than hanging the pipeline.
type HTTPReconstructor struct {
	endpoint string
	client   *http.Client
}

// NewHTTPReconstructor creates a reconstructor backed by an HTTP model
// server.
func NewHTTPReconstructor(endpoint string, timeout time.Duration) (*HTTPReconstructor, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: model endpoint is required", domain.ErrInvalidConfig)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPReconstructor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type reconstructRequest struct {
	Vector []float64 `json:"vector"`
}

type reconstructResponse struct {
	Reconstruction []float64 `json:"reconstruction"`
}

// Reconstruct POSTs the vector to the model server and decodes the
// reconstruction.
func (r *HTTPReconstructor) Reconstruct(ctx context.Context, vec []float64) ([]float64, error) {
	body, err := json.Marshal(reconstructRequest{Vector: vec})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: model call timed out", domain.ErrModelUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: model returned status %d", domain.ErrModelUnavailable, resp.StatusCode)
	}

	var out reconstructResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: malformed model response: %v", domain.ErrModelUnavailable, err)
	}

	return out.Reconstruction, nil
}
