package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/imaddar/poker-arena/services/equity/internal/domain"
	"github.com/imaddar/poker-arena/services/equity/internal/engine"
	"github.com/imaddar/poker-arena/services/equity/internal/persistence"
)

func TestEvaluateEndpoint(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	w := doJSON(t, server, http.MethodPost, "/v1/evaluate", `{"hole":"14h 13h","board":"12h 11h 10h 2c 3d"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d body=%s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp engine.EvaluateResult
	decodeBody(t, w, &resp)
	if resp.HandRank.Category != 9 || resp.HandRank.Name != "royal_flush" {
		t.Fatalf("expected royal flush, got %+v", resp.HandRank)
	}
	if len(resp.HandRank.Tiebreak) != 1 || resp.HandRank.Tiebreak[0] != 14 {
		t.Fatalf("expected tiebreak [14], got %v", resp.HandRank.Tiebreak)
	}
	if !strings.Contains(w.Body.String(), `"tiebreak":[14]`) {
		t.Fatalf("expected numeric tiebreak array in body, got %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"hole":[{"rank":14,"suit":"h"},{"rank":13,"suit":"h"}]`) {
		t.Fatalf("expected hole as card objects, got %s", w.Body.String())
	}
	if len(resp.Board) != 5 || resp.Board[4] != (domain.Card{Rank: 3, Suit: domain.SuitDiamonds}) {
		t.Fatalf("unexpected board echo %+v", resp.Board)
	}
}

func TestCompareEndpoint(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	w := doJSON(t, server, http.MethodPost, "/v1/compare", `{"hole1":"13h 13d","hole2":"14h 14d","board":"2c 7s 9d"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d body=%s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp engine.CompareResult
	decodeBody(t, w, &resp)
	if resp.Comparison.Result != "hand2_wins" || resp.Comparison.Value != -1 {
		t.Fatalf("expected hand2_wins/-1, got %+v", resp.Comparison)
	}
}

func TestEquityEndpoint(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	w := doJSON(t, server, http.MethodPost, "/v1/equity", `{
		"players": ["14h 14d", "13h 13d"],
		"board": "2c 7s 9d",
		"options": {"mode": "exact"},
		"dead": ["3s"]
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d body=%s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp engine.EquityResult
	decodeBody(t, w, &resp)
	if resp.Equity.Samples != 946 {
		t.Fatalf("expected C(44,2)=946 samples, got %v", resp.Equity.Samples)
	}
	for i := range resp.Players {
		sum := resp.Equity.Win[i] + resp.Equity.Tie[i] + resp.Equity.Lose[i]
		if sum < 1-1e-9 || sum > 1+1e-9 {
			t.Fatalf("player %d fractions sum to %v", i, sum)
		}
	}
	if resp.Equity.Win[0] <= resp.Equity.Win[1] {
		t.Fatalf("expected aces ahead, got %v", resp.Equity.Win)
	}
	body := w.Body.String()
	for _, want := range []string{
		`"players":[[{"rank":14,"suit":"h"},{"rank":14,"suit":"d"}],[{"rank":13,"suit":"h"},{"rank":13,"suit":"d"}]]`,
		`"board":[{"rank":2,"suit":"c"},{"rank":7,"suit":"s"},{"rank":9,"suit":"d"}]`,
		`"dead":[{"rank":3,"suit":"s"}]`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in body %s", want, body)
		}
	}
}

func TestEquityEndpoint_SeededMonteCarloIsReproducible(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	body := `{"players":["14s 13s","12h 12d","7c 2d"],"options":{"mode":"mc","iterations":2000,"seed":42}}`

	var first, second engine.EquityResult
	decodeBody(t, doJSON(t, server, http.MethodPost, "/v1/equity", body), &first)
	decodeBody(t, doJSON(t, server, http.MethodPost, "/v1/equity", body), &second)
	if first.Equity.Seed == nil || *first.Equity.Seed != 42 {
		t.Fatalf("expected seed 42 echoed, got %v", first.Equity.Seed)
	}
	for i := range first.Equity.Win {
		if first.Equity.Win[i] != second.Equity.Win[i] || first.Equity.Tie[i] != second.Equity.Tie[i] {
			t.Fatalf("expected identical seeded results, got %v and %v", first.Equity, second.Equity)
		}
	}
}

func TestOutsEndpoint(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	w := doJSON(t, server, http.MethodPost, "/v1/outs", `{"hero":"14h 11h","villain":"13s 13d","board":"2h 7h 9c 4s"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d body=%s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp engine.OutsResult
	decodeBody(t, w, &resp)
	if resp.WinOuts != 12 || resp.TotalRiverCards != 44 {
		t.Fatalf("expected 12 of 44 win outs, got %+v", resp)
	}
}

func TestCanonicalEndpoint(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	w := doJSON(t, server, http.MethodPost, "/v1/canonical", `{"cards":"14h 13d","known":"14h"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d body=%s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp engine.CanonicalResult
	decodeBody(t, w, &resp)
	if resp.ConstrainedKey != "14:0 13:4" || resp.EstimatedCount != 12 {
		t.Fatalf("unexpected canonical response %+v", resp)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"parse error", "/v1/evaluate", `{"hole":"1h 13h","board":"2c 3d 4s"}`, http.StatusBadRequest, "parse_error"},
		{"duplicate card", "/v1/compare", `{"hole1":"14h 14d","hole2":"14h 13d","board":"2c 3d 4s"}`, http.StatusBadRequest, "duplicate_card"},
		{"one player", "/v1/equity", `{"players":["14h 14d"]}`, http.StatusBadRequest, "invalid_player_count"},
		{"board length", "/v1/equity", `{"players":["14h 14d","13h 13d"],"board":"2c 3d"}`, http.StatusBadRequest, "invalid_board_length"},
		{"outs on flop", "/v1/outs", `{"hero":"14h 14d","villain":"13h 13d","board":"2c 3d 4s"}`, http.StatusBadRequest, "invalid_outs_precondition"},
		{"unknown mode", "/v1/equity", `{"players":["14h 14d","13h 13d"],"options":{"mode":"fast"}}`, http.StatusBadRequest, "invalid_mode"},
		{"negative iterations", "/v1/equity", `{"players":["14h 14d","13h 13d"],"options":{"iterations":-1}}`, http.StatusBadRequest, "invalid_request"},
		{"too many iterations", "/v1/equity", `{"players":["14h 14d","13h 13d"],"options":{"iterations":99999999}}`, http.StatusBadRequest, "invalid_request"},
		{"unknown field", "/v1/evaluate", `{"hole":"14h 13h","board":"2c 3d 4s","extra":1}`, http.StatusBadRequest, "invalid_request"},
		{"missing field", "/v1/evaluate", `{"board":"2c 3d 4s"}`, http.StatusBadRequest, "invalid_request"},
		{"malformed json", "/v1/outs", `{"hero":`, http.StatusBadRequest, "invalid_request"},
		{"unknown route", "/v1/simulate", `{}`, http.StatusNotFound, "not_found"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w := doJSON(t, server, http.MethodPost, tc.path, tc.body)
			if w.Code != tc.status {
				t.Fatalf("expected status %d, got %d body=%s", tc.status, w.Code, w.Body.String())
			}
			var resp map[string]string
			decodeBody(t, w, &resp)
			if resp["code"] != tc.code || resp["error"] == "" {
				t.Fatalf("expected code %q with message, got %v", tc.code, resp)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	w := doJSON(t, server, http.MethodGet, "/v1/equity", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
	}
	if w.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow: POST, got %q", w.Header().Get("Allow"))
	}

	w = doJSON(t, server, http.MethodPost, "/healthz", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	w := doJSON(t, server, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected healthz response %d %s", w.Code, w.Body.String())
	}
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	w := doJSON(t, server, http.MethodGet, "/healthz", "")
	if _, err := uuid.Parse(w.Header().Get("X-Request-ID")); err != nil {
		t.Fatalf("expected generated uuid request id, got %q", w.Header().Get("X-Request-ID"))
	}

	supplied := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", supplied)
	w = httptest.NewRecorder()
	server.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != supplied {
		t.Fatalf("expected supplied request id echoed, got %q", w.Header().Get("X-Request-ID"))
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "not-a-uuid")
	w = httptest.NewRecorder()
	server.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got == "not-a-uuid" {
		t.Fatal("expected non-uuid request id to be replaced")
	}
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	eng, err := engine.New(engine.Config{})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	server := NewServer(eng, nil, discardLogger(), ServerConfig{MaxBodyBytes: 16})
	w := doJSON(t, server, http.MethodPost, "/v1/evaluate", `{"hole":"14h 13h","board":"12h 11h 10h"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, w.Code)
	}
}

func TestEngineFailuresMapToServerStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "timeout"},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, "cancelled"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			server := NewServer(failingEngine{err: tc.err}, nil, discardLogger(), ServerConfig{})
			w := doJSON(t, server, http.MethodPost, "/v1/equity", `{"players":["14h 14d","13h 13d"]}`)
			if w.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, w.Code)
			}
			var resp map[string]string
			decodeBody(t, w, &resp)
			if resp["code"] != tc.code {
				t.Fatalf("expected code %q, got %v", tc.code, resp)
			}
			if tc.code == "internal" && strings.Contains(resp["error"], "disk") {
				t.Fatal("expected internal error details to stay out of the response")
			}
		})
	}
}

func TestRecoversFromEnginePanic(t *testing.T) {
	t.Parallel()

	server := NewServer(panickingEngine{}, nil, discardLogger(), ServerConfig{})
	w := doJSON(t, server, http.MethodPost, "/v1/evaluate", `{"hole":"14h 13h","board":"2c 3d 4s"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestRequestsAreAudited(t *testing.T) {
	t.Parallel()

	server, repo := newTestServer(t)
	ok := doJSON(t, server, http.MethodPost, "/v1/evaluate", `{ "hole": "14h 13h", "board": "12h 11h 10h" }`)
	bad := doJSON(t, server, http.MethodPost, "/v1/equity", `{"players":["14h 14d"]}`)
	doJSON(t, server, http.MethodGet, "/healthz", "")

	records, err := repo.ListRequests(context.Background(), persistence.ListFilter{})
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected only operations to be audited, got %d records", len(records))
	}

	got, found, err := repo.GetRequest(context.Background(), ok.Header().Get("X-Request-ID"))
	if err != nil || !found {
		t.Fatalf("expected audit record for evaluate, found=%v err=%v", found, err)
	}
	if got.Operation != persistence.OperationEvaluate || got.Code != "ok" || got.HTTPStatus != http.StatusOK {
		t.Fatalf("unexpected evaluate record %+v", got)
	}
	if string(got.Input) != `{"hole":"14h 13h","board":"12h 11h 10h"}` {
		t.Fatalf("expected compacted input, got %s", got.Input)
	}

	got, found, err = repo.GetRequest(context.Background(), bad.Header().Get("X-Request-ID"))
	if err != nil || !found {
		t.Fatalf("expected audit record for equity, found=%v err=%v", found, err)
	}
	if got.Code != "invalid_player_count" || got.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("unexpected equity record %+v", got)
	}
	if strings.Contains(string(got.Input), "win") {
		t.Fatalf("expected only inputs to be stored, got %s", got.Input)
	}
}

func TestAuditInput(t *testing.T) {
	t.Parallel()

	if got := string(auditInput([]byte(" {\"a\": 1} "))); got != `{"a":1}` {
		t.Fatalf("expected compacted json, got %s", got)
	}
	if got := string(auditInput([]byte(`{"a":`))); got != `"{\"a\":"` {
		t.Fatalf("expected invalid json wrapped as a string, got %s", got)
	}
}

type failingEngine struct {
	err error
}

func (f failingEngine) Evaluate(context.Context, string, string) (engine.EvaluateResult, error) {
	return engine.EvaluateResult{}, f.err
}

func (f failingEngine) Compare(context.Context, string, string, string) (engine.CompareResult, error) {
	return engine.CompareResult{}, f.err
}

func (f failingEngine) Equity(context.Context, engine.EquityInput) (engine.EquityResult, error) {
	return engine.EquityResult{}, f.err
}

func (f failingEngine) Outs(context.Context, engine.OutsInput) (engine.OutsResult, error) {
	return engine.OutsResult{}, f.err
}

func (f failingEngine) Canonical(context.Context, string, string) (engine.CanonicalResult, error) {
	return engine.CanonicalResult{}, f.err
}

type panickingEngine struct {
	failingEngine
}

func (panickingEngine) Evaluate(context.Context, string, string) (engine.EvaluateResult, error) {
	panic("boom")
}

func newTestServer(t *testing.T) (*Server, persistence.Repository) {
	t.Helper()
	eng, err := engine.New(engine.Config{})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	repo := persistence.NewInMemoryRepository()
	return NewServer(eng, repo, discardLogger(), ServerConfig{}), repo
}

func doJSON(t *testing.T, server http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(target); err != nil {
		t.Fatalf("decode response failed: %v body=%s", err, w.Body.String())
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
