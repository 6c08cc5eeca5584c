package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/reportlens/internal/model"
	"github.com/ppiankov/reportlens/internal/util"
	"github.com/ppiankov/reportlens/internal/worker"
)

// ErrInvalidResponse is returned when a 2xx response does not have the expected shape
var ErrInvalidResponse = errors.New("invalid response from analysis service")

// StatusError is a non-2xx response from the analysis service
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client talks to the external analysis service.
// Requests are rate limited per host and never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

// NewClient creates a client for cfg. limiter may be nil.
func NewClient(cfg model.BackendConfig, limiter *worker.Limiter) *Client {
	httpClient := util.NewHTTPClient(cfg.Timeout, cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	if limiter != nil {
		httpClient.Transport = limiter.Transport(httpClient.Transport)
	}

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 8 << 20
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
	}
}

// BaseURL returns the service root
func (c *Client) BaseURL() string {
	return c.baseURL
}

type factCheckRequest struct {
	Statement string `json:"statement"`
}

// FactCheck verifies statement. It returns the typed result together with the
// raw payload so callers can cache exactly what the service sent.
func (c *Client) FactCheck(ctx context.Context, statement string) (*model.FactCheckResult, []byte, error) {
	raw, err := c.do(ctx, http.MethodPost, "/fact-check", factCheckRequest{Statement: statement})
	if err != nil {
		return nil, nil, err
	}

	result, err := ParseFactCheck(raw)
	if err != nil {
		return nil, nil, err
	}
	return result, raw, nil
}

// ParseFactCheck validates a fact-check payload: a JSON object whose
// fact_check field holds an array of claims.
func ParseFactCheck(raw []byte) (*model.FactCheckResult, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidResponse)
	}
	if envelope == nil {
		return nil, fmt.Errorf("%w: null body", ErrInvalidResponse)
	}

	field, ok := envelope["fact_check"]
	if !ok {
		return nil, fmt.Errorf("%w: missing fact_check", ErrInvalidResponse)
	}
	if trimmed := bytes.TrimSpace(field); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: fact_check is not an array", ErrInvalidResponse)
	}

	var claims []model.FactCheckClaim
	if err := json.Unmarshal(field, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if claims == nil {
		claims = []model.FactCheckClaim{}
	}
	return &model.FactCheckResult{Claims: claims}, nil
}

type chatRequest struct {
	Message string `json:"message"`
	Option  string `json:"option"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

// Chat sends a message with the current section as option.
// ok is false when the reply lacks a usable response field.
func (c *Client) Chat(ctx context.Context, message, option string) (string, bool, error) {
	raw, err := c.do(ctx, http.MethodPost, "/chat", chatRequest{Message: message, Option: option})
	if err != nil {
		return "", false, err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if resp.Response == nil || strings.TrimSpace(*resp.Response) == "" {
		return "", false, nil
	}
	return *resp.Response, true, nil
}

// MarketSummary generates the market analysis narrative
func (c *Client) MarketSummary(ctx context.Context) (*model.Narrative, error) {
	return c.narrative(ctx, http.MethodPost, "/generate-market-summary")
}

// RiskFactors generates the risk factor narrative
func (c *Client) RiskFactors(ctx context.Context) (*model.Narrative, error) {
	return c.narrative(ctx, http.MethodPost, "/generate-risk-factors")
}

// ExecutiveSummary fetches the executive summary. The service answers with an
// array whose first element is the narrative.
func (c *Client) ExecutiveSummary(ctx context.Context) (*model.Narrative, error) {
	raw, err := c.do(ctx, http.MethodGet, "/executive-summary", nil)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: executive summary is not an array", ErrInvalidResponse)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty executive summary", ErrInvalidResponse)
	}
	return parseNarrative(items[0])
}

// Narrative fetches the narrative of any section
func (c *Client) Narrative(ctx context.Context, s model.Section) (*model.Narrative, error) {
	switch s {
	case model.SectionExecutiveSummary:
		return c.ExecutiveSummary(ctx)
	case model.SectionMarketAnalysis:
		return c.MarketSummary(ctx)
	case model.SectionRiskFactors:
		return c.RiskFactors(ctx)
	default:
		return nil, fmt.Errorf("no endpoint for section %q", s)
	}
}

func (c *Client) narrative(ctx context.Context, method, path string) (*model.Narrative, error) {
	raw, err := c.do(ctx, method, path, nil)
	if err != nil {
		return nil, err
	}
	return parseNarrative(raw)
}

func parseNarrative(raw []byte) (*model.Narrative, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope == nil {
		return nil, fmt.Errorf("%w: narrative is not an object", ErrInvalidResponse)
	}
	if _, ok := envelope["summary"]; !ok {
		return nil, fmt.Errorf("%w: missing summary", ErrInvalidResponse)
	}

	var n model.Narrative
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &n, nil
}

// FinancialStatements returns the raw statements payload. Python backends may
// emit NaN tokens, so the body is handed over undecoded.
func (c *Client) FinancialStatements(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/financial-statements", nil)
}

// Health checks that the service answers at all
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reach %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusInternalServerError {
		return &StatusError{Method: http.MethodGet, Path: "/", StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Read one byte past the limit to tell a full body from a truncated one
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       snippet(respBody),
		}
	}
	if int64(len(respBody)) > c.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidResponse, c.maxBytes)
	}
	return respBody, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
