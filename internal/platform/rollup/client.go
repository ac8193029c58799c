// Package rollup is the REST client for the exchange ledger RPC. It submits
// signed command transactions, queries account/global state snapshots, and
// reads the market and token listings. Retry and backoff are owned by the
// RPC node's front end, not this client.
package rollup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zkxchange/rollexbot/internal/crypto"
	"github.com/zkxchange/rollexbot/internal/domain"
)

// RejectionError carries the opaque error payload of a rejected transaction
// submission. The client does not interpret it beyond surfacing it.
type RejectionError struct {
	Payload string
}

func (e *RejectionError) Error() string {
	return "rollup: transaction rejected: " + e.Payload
}

// Client is the ledger RPC client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the RPC node at baseURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "rollup_client")),
	}
}

// envelope is the RPC node's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// SendTransaction signs the command words with the given signer and submits
// them. A fulfilled submission returns the ledger state snapshot the
// transaction produced; a rejected one returns *RejectionError with the
// node's payload.
func (c *Client) SendTransaction(ctx context.Context, cmd []uint64, signer *crypto.Signer) (domain.StateSnapshot, error) {
	sig, err := signer.SignCommand(cmd)
	if err != nil {
		return domain.StateSnapshot{}, fmt.Errorf("rollup: send transaction: %w", err)
	}

	body := map[string]any{
		"cmd":       cmd,
		"pubkey":    signer.PublicKeyHex(),
		"signature": sig,
	}
	raw, err := c.post(ctx, "/send", body)
	if err != nil {
		return domain.StateSnapshot{}, err
	}

	var state APIStateResponse
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.StateSnapshot{}, fmt.Errorf("rollup: decode send response: %w", err)
	}
	return state.ToDomain()
}

// QueryState returns the full account + global state snapshot for the
// signer's account.
func (c *Client) QueryState(ctx context.Context, signer *crypto.Signer) (domain.StateSnapshot, error) {
	body := map[string]any{
		"pubkey": signer.PublicKeyHex(),
	}
	raw, err := c.post(ctx, "/query", body)
	if err != nil {
		return domain.StateSnapshot{}, err
	}

	var state APIStateResponse
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.StateSnapshot{}, fmt.Errorf("rollup: decode state response: %w", err)
	}
	return state.ToDomain()
}

// QueryMarkets returns the ledger's market listing.
func (c *Client) QueryMarkets(ctx context.Context) ([]domain.Market, error) {
	raw, err := c.get(ctx, "/markets")
	if err != nil {
		return nil, err
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(raw, &apiMarkets); err != nil {
		return nil, fmt.Errorf("rollup: decode markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(apiMarkets))
	for _, m := range apiMarkets {
		dm, err := m.ToDomain()
		if err != nil {
			return nil, err
		}
		markets = append(markets, dm)
	}
	return markets, nil
}

// QueryTokens returns the ledger's token table.
func (c *Client) QueryTokens(ctx context.Context) ([]domain.Token, error) {
	raw, err := c.get(ctx, "/tokens")
	if err != nil {
		return nil, err
	}

	var apiTokens []APIToken
	if err := json.Unmarshal(raw, &apiTokens); err != nil {
		return nil, fmt.Errorf("rollup: decode tokens: %w", err)
	}

	tokens := make([]domain.Token, 0, len(apiTokens))
	for _, t := range apiTokens {
		tokens = append(tokens, t.ToDomain())
	}
	return tokens, nil
}

// QueryConfig returns the ledger's deployment parameters. Useful for
// verifying the configured matching constants against the node at startup.
func (c *Client) QueryConfig(ctx context.Context) (domain.LedgerConfig, error) {
	raw, err := c.get(ctx, "/config")
	if err != nil {
		return domain.LedgerConfig{}, err
	}

	var apiCfg APIConfig
	if err := json.Unmarshal(raw, &apiCfg); err != nil {
		return domain.LedgerConfig{}, fmt.Errorf("rollup: decode config: %w", err)
	}
	return apiCfg.ToDomain(), nil
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("rollup: marshal %s request: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload))
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("rollup: create %s request: %w", path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rollup: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rollup: read %s response: %w", path, err)
	}

	c.logger.Debug("rpc call",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("request_id", reqID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("rollup: decode %s envelope (status %d): %w", path, resp.StatusCode, err)
	}
	if !env.Success {
		return nil, &RejectionError{Payload: env.Error}
	}
	return env.Data, nil
}
