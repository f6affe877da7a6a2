// Package hook invokes the external policy-hook service that gates pause and
// reup operations.
package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tempoledger/tempod/internal/domain"
)

// Client calls the policy-hook service over HTTP. Each invocation POSTs the
// request context to {base_url}/hooks/{hook_id}; any non-2xx response is a
// veto.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a hook Client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type invokePayload struct {
	Mint      string `json:"mint"`
	Account   string `json:"account"`
	Authority string `json:"authority"`
}

// Invoke calls the hook and returns domain.ErrHookFailed when the hook is
// unreachable or responds with a non-2xx status.
func (c *Client) Invoke(ctx context.Context, req domain.HookRequest) error {
	body, err := json.Marshal(invokePayload{
		Mint:      string(req.Mint),
		Account:   string(req.Account),
		Authority: string(req.Authority),
	})
	if err != nil {
		return fmt.Errorf("hook: marshal request: %w", err)
	}

	url := c.baseURL + "/hooks/" + string(req.HookID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("hook: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("hook: invoke %s: %w: %v", req.HookID, domain.ErrHookFailed, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "hook: rejected",
			slog.String("hook_id", string(req.HookID)),
			slog.String("account", string(req.Account)),
			slog.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("hook: invoke %s: status %d: %w", req.HookID, resp.StatusCode, domain.ErrHookFailed)
	}
	return nil
}

var _ domain.PolicyHook = (*Client)(nil)
