// Package gateway provides the HTTP client for the remote expense backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/offlinefirst/snapledger/internal/common"
	"github.com/offlinefirst/snapledger/internal/model"
	"github.com/offlinefirst/snapledger/internal/service"
)

// Client talks to the expense backend over HTTP. Every failure mode it can
// hit (transport error, non-2xx status, malformed body) comes back to the
// caller as a *common.GatewayError carrying the original cause.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Backend wire types.
type expensePayload struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Category    string  `json:"category,omitempty"`
}

type expenseEnvelope struct {
	ID          json.RawMessage `json:"id"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Amount      float64         `json:"amount"`
}

type suggestionEnvelope struct {
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
}

// NewClient creates a gateway client for the backend at baseURL.
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: gateway base URL %q is not a valid http(s) URL", common.ErrInvalidConfig, baseURL)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// ListExpenses fetches every expense record the backend knows about.
func (c *Client) ListExpenses(ctx context.Context) ([]model.Expense, error) {
	const op = "list"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/invoices", nil)
	if err != nil {
		return nil, common.NewGatewayError(op, 0, err)
	}

	var envelopes []expenseEnvelope
	if err := c.do(op, req, &envelopes); err != nil {
		return nil, err
	}

	expenses := make([]model.Expense, 0, len(envelopes))
	for _, env := range envelopes {
		expenses = append(expenses, env.toModel())
	}
	return expenses, nil
}

// CreateExpense pushes a locally stored record to the backend. The record's
// client token rides along as an idempotency key so a retried create after a
// lost acknowledgment cannot double-book the expense.
func (c *Client) CreateExpense(ctx context.Context, exp model.Expense) (*model.Expense, error) {
	const op = "create"

	body, err := json.Marshal(expensePayload{
		Description: exp.Description,
		Amount:      exp.Amount,
		Date:        exp.Date,
		Category:    exp.Category,
	})
	if err != nil {
		return nil, common.NewGatewayError(op, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoices", bytes.NewReader(body))
	if err != nil {
		return nil, common.NewGatewayError(op, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if exp.ClientToken != "" {
		req.Header.Set("Idempotency-Key", exp.ClientToken)
	}

	slog.Debug("Pushing expense to backend",
		"local_id", exp.ID,
		"client_token", exp.ClientToken)

	var env expenseEnvelope
	if err := c.do(op, req, &env); err != nil {
		return nil, err
	}

	created := env.toModel()
	return &created, nil
}

// ScanImage submits a raw receipt image to the backend's single-step scan
// endpoint. Kept for backends that still do their own text extraction.
func (c *Client) ScanImage(ctx context.Context, image io.Reader, filename string) (*model.Suggestion, error) {
	const op = "scan"

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, common.NewGatewayError(op, 0, err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, common.NewGatewayError(op, 0, err)
	}
	if err := writer.Close(); err != nil {
		return nil, common.NewGatewayError(op, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoices/scan", &buf)
	if err != nil {
		return nil, common.NewGatewayError(op, 0, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var env suggestionEnvelope
	if err := c.do(op, req, &env); err != nil {
		return nil, err
	}

	return env.toModel(), nil
}

// ParseText hands extracted receipt text to the backend's semantic parser
// and returns the structured field suggestion it produces.
func (c *Client) ParseText(ctx context.Context, text string) (*model.Suggestion, error) {
	const op = "parse-text"

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, common.NewGatewayError(op, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoices/parse-text", bytes.NewReader(body))
	if err != nil {
		return nil, common.NewGatewayError(op, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var env suggestionEnvelope
	if err := c.do(op, req, &env); err != nil {
		return nil, err
	}

	return env.toModel(), nil
}

// do executes the request and decodes a JSON response into out.
func (c *Client) do(op string, req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.NewGatewayError(op, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return common.NewGatewayError(op, resp.StatusCode,
			fmt.Errorf("backend error: %s", strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return common.NewGatewayError(op, 0, fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}

func (env expenseEnvelope) toModel() model.Expense {
	return model.Expense{
		RemoteID:    decodeRemoteID(env.ID),
		Description: env.Description,
		Amount:      env.Amount,
		Date:        env.Date,
		Category:    env.Category,
	}
}

func (env suggestionEnvelope) toModel() *model.Suggestion {
	return &model.Suggestion{
		Description: env.Description,
		Amount:      env.Amount,
		Date:        env.Date,
		Category:    env.Category,
	}
}

// decodeRemoteID tolerates both string and numeric identifier schemes.
func decodeRemoteID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

// Ensure Client implements the gateway contract.
var _ service.Gateway = (*Client)(nil)
