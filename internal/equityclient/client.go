package equityclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/imaddar/poker-arena/services/equity/internal/api"
	"github.com/imaddar/poker-arena/services/equity/internal/engine"
)

const (
	defaultTimeout       = 60 * time.Second
	maxResponseBodyBytes = 1 << 20
)

var (
	ErrEndpointNotConfigured = errors.New("equity endpoint not configured")
	ErrRequestTimeout        = errors.New("equity request timeout")
	ErrNetwork               = errors.New("equity network error")
	ErrMalformedResponse     = errors.New("equity response malformed")
)

// APIError is a non-2xx answer carrying the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("equityd %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c Client) Evaluate(ctx context.Context, hole, board string) (engine.EvaluateResult, error) {
	var out engine.EvaluateResult
	err := c.post(ctx, "/v1/evaluate", api.EvaluateRequest{Hole: hole, Board: board}, &out)
	return out, err
}

func (c Client) Compare(ctx context.Context, hole1, hole2, board string) (engine.CompareResult, error) {
	var out engine.CompareResult
	err := c.post(ctx, "/v1/compare", api.CompareRequest{Hole1: hole1, Hole2: hole2, Board: board}, &out)
	return out, err
}

func (c Client) Equity(ctx context.Context, in engine.EquityInput) (engine.EquityResult, error) {
	req := api.EquityRequest{
		Players: in.Players,
		Board:   in.Board,
		Dead:    in.Dead,
		Options: &api.EquityOptions{
			Mode:           string(in.Options.Mode),
			Iterations:     in.Options.Iterations,
			Seed:           in.Options.Seed,
			ExactMaxCombos: in.Options.ExactMaxCombos,
		},
	}
	var out engine.EquityResult
	err := c.post(ctx, "/v1/equity", req, &out)
	return out, err
}

// Outs runs against the server's suppression policy, not the caller's.
func (c Client) Outs(ctx context.Context, in engine.OutsInput) (engine.OutsResult, error) {
	req := api.OutsRequest{Hero: in.Hero, Villain: in.Villain, Board: in.Board, Dead: in.Dead}
	var out engine.OutsResult
	err := c.post(ctx, "/v1/outs", req, &out)
	return out, err
}

func (c Client) Canonical(ctx context.Context, cards, known string) (engine.CanonicalResult, error) {
	var out engine.CanonicalResult
	err := c.post(ctx, "/v1/canonical", api.CanonicalRequest{Cards: cards, Known: known}, &out)
	return out, err
}

func (c Client) post(ctx context.Context, path string, payload, out any) error {
	if c.baseURL == "" {
		return ErrEndpointNotConfigured
	}
	if c.httpClient == nil {
		c = New(c.baseURL, defaultTimeout)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeoutError(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrRequestTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	limitedBody := io.LimitReader(resp.Body, maxResponseBodyBytes+1)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, limitedBody)
	}

	decoder := json.NewDecoder(limitedBody)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}
	var trailing json.RawMessage
	if err := decoder.Decode(&trailing); err != io.EOF {
		return fmt.Errorf("%w: response body has trailing data", ErrMalformedResponse)
	}
	return nil
}

func decodeAPIError(status int, body io.Reader) error {
	var dto struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(body).Decode(&dto); err != nil || dto.Code == "" {
		return fmt.Errorf("%w: status %d", ErrNetwork, status)
	}
	return &APIError{Status: status, Code: dto.Code, Message: dto.Error}
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
