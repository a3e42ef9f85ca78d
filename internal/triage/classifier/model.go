package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Model delegates classification to an external prediction service. The
// service may be non-deterministic; on timeout, transport error, or a
// contract-violating response, Model falls back to the rule-based variant
// unless fallback was disabled in configuration.
type Model struct {
	url      string
	client   *http.Client
	fallback Classifier
}

// NewModel creates the model-backed classifier. A nil fallback disables the
// rules fallback and surfaces errors to the caller.
func NewModel(url string, client *http.Client, fallback Classifier) *Model {
	if client == nil {
		client = http.DefaultClient
	}
	return &Model{url: url, client: client, fallback: fallback}
}

var _ Classifier = (*Model)(nil)

// Classify calls the prediction service under the caller's deadline.
func (m *Model) Classify(ctx context.Context, in Input) (Result, error) {
	result, err := m.predict(ctx, in)
	if err == nil {
		return result, nil
	}

	if m.fallback != nil {
		return m.fallback.Classify(ctx, in)
	}
	return Result{}, err
}

func (m *Model) predict(ctx context.Context, in Input) (Result, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return Result{}, fmt.Errorf("encode classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call prediction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("prediction service returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode classifier response: %w", err)
	}

	if err := result.Validate(); err != nil {
		return Result{}, err
	}

	return result, nil
}
