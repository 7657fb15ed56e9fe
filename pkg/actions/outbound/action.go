// Package outbound performs the webhook side effect for vehicle_outbound
// workflows: remap the entity payload and POST it to the configured endpoint.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gearboxhq/gearbox/pkg/models"
)

// ErrActionExecution wraps webhook delivery failures. Never propagated to
// the HTTP layer; it only drives the failed execution log entry.
var ErrActionExecution = errors.New("outbound action failed")

const requestTimeout = 30 * time.Second

// Action posts a remapped field set to an external endpoint.
type Action struct {
	URL          string
	FieldMapping map[string]string
	Auth         models.AuthConfig
	Timeout      time.Duration

	client *http.Client
	logger *slog.Logger
}

// Result classifies one delivery attempt. Any 2xx response is success.
type Result struct {
	StatusCode int
	Success    bool
	Body       string
}

// NewAction builds the webhook action from a workflow's export and auth
// configuration.
func NewAction(logger *slog.Logger, export models.ExportConfig, auth models.AuthConfig) (*Action, error) {
	if export.URL == "" {
		return nil, fmt.Errorf("%w: export config has no url", ErrActionExecution)
	}

	return &Action{
		URL:          export.URL,
		FieldMapping: export.FieldMapping,
		Auth:         auth,
		Timeout:      requestTimeout,
		client:       &http.Client{},
		logger:       logger.With("module", "outbound_action"),
	}, nil
}

// SetClient replaces the HTTP client. Test use only.
func (a *Action) SetClient(client *http.Client) {
	a.client = client
}

// RemapFields renames payload keys per the configured mapping table. Keys
// without a mapping pass through unchanged.
func (a *Action) RemapFields(payload map[string]any) map[string]any {
	if len(a.FieldMapping) == 0 {
		return payload
	}

	remapped := make(map[string]any, len(payload))

	for key, value := range payload {
		if mapped, ok := a.FieldMapping[key]; ok {
			remapped[mapped] = value

			continue
		}

		remapped[key] = value
	}

	return remapped
}

// Execute delivers the payload. The returned error describes transport or
// non-2xx failures; callers log it, they never re-raise it into the request
// path.
func (a *Action) Execute(ctx context.Context, payload map[string]any) (*Result, error) {
	body, err := json.Marshal(a.RemapFields(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode payload: %w", ErrActionExecution, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrActionExecution, err)
	}

	req.Header.Set("Content-Type", "application/json")

	headers, err := BuildAuthHeaders(a.Auth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrActionExecution, err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrActionExecution, err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			a.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrActionExecution, err)
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		Body:       string(respBody),
	}

	if !result.Success {
		return result, fmt.Errorf("%w: endpoint returned status %d", ErrActionExecution, resp.StatusCode)
	}

	a.logger.DebugContext(ctx, "Outbound delivery succeeded",
		"url", a.URL, "status", resp.StatusCode)

	return result, nil
}
