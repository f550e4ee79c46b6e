package api

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

	"github.com/imaddar/poker-arena/services/equity/internal/domain"
	"github.com/imaddar/poker-arena/services/equity/internal/engine"
	"github.com/imaddar/poker-arena/services/equity/internal/equity"
	"github.com/imaddar/poker-arena/services/equity/internal/persistence"
)

const (
	DefaultMaxBodyBytes  = 64 << 10
	DefaultMaxIterations = 5_000_000

	auditTimeout = 2 * time.Second
)

// Engine is the computation surface the server exposes.
type Engine interface {
	Evaluate(ctx context.Context, hole, board string) (engine.EvaluateResult, error)
	Compare(ctx context.Context, hole1, hole2, board string) (engine.CompareResult, error)
	Equity(ctx context.Context, in engine.EquityInput) (engine.EquityResult, error)
	Outs(ctx context.Context, in engine.OutsInput) (engine.OutsResult, error)
	Canonical(ctx context.Context, cards, known string) (engine.CanonicalResult, error)
}

type ServerConfig struct {
	MaxBodyBytes  int64
	MaxIterations int
}

type Server struct {
	engine Engine
	// repo may be nil, which disables the request audit log.
	repo   persistence.Repository
	logger *slog.Logger
	cfg    ServerConfig
}

func NewServer(eng Engine, repo persistence.Repository, logger *slog.Logger, cfg ServerConfig) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, repo: repo, logger: logger, cfg: cfg}
}

type EvaluateRequest struct {
	Hole  string `json:"hole"`
	Board string `json:"board"`
}

type CompareRequest struct {
	Hole1 string `json:"hole1"`
	Hole2 string `json:"hole2"`
	Board string `json:"board"`
}

type EquityOptions struct {
	Mode           string `json:"mode,omitempty"`
	Iterations     int    `json:"iterations,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
	ExactMaxCombos int    `json:"exact_max_combos,omitempty"`
}

type EquityRequest struct {
	Players []string       `json:"players"`
	Board   string         `json:"board"`
	Options *EquityOptions `json:"options,omitempty"`
	Dead    []string       `json:"dead,omitempty"`
}

type OutsRequest struct {
	Hero    string   `json:"hero"`
	Villain string   `json:"villain"`
	Board   string   `json:"board"`
	Dead    []string `json:"dead,omitempty"`
}

type CanonicalRequest struct {
	Cards string `json:"cards"`
	Known string `json:"known,omitempty"`
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := requestIDFrom(r)
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	rec.Header().Set(headerRequestID, requestID)

	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("panic recovered", "request_id", requestID, "path", r.URL.Path, "panic", recovered)
			if !rec.wrote {
				writeError(rec, http.StatusInternalServerError, codeInternal, "internal error")
			}
		}
		s.logger.Info("request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	s.route(rec, r, requestID)
}

func (s *Server) route(w *statusRecorder, r *http.Request, requestID string) {
	if r.URL.Path == "/healthz" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	var run func(ctx context.Context, body []byte) (any, error)
	var op persistence.Operation
	switch r.URL.Path {
	case "/v1/evaluate":
		op, run = persistence.OperationEvaluate, s.evaluate
	case "/v1/compare":
		op, run = persistence.OperationCompare, s.compare
	case "/v1/equity":
		op, run = persistence.OperationEquity, s.equity
	case "/v1/outs":
		op, run = persistence.OperationOuts, s.outs
	case "/v1/canonical":
		op, run = persistence.OperationCanonical, s.canonical
	default:
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	s.serveOperation(w, r, requestID, op, run)
}

func (s *Server) serveOperation(
	w *statusRecorder,
	r *http.Request,
	requestID string,
	op persistence.Operation,
	run func(ctx context.Context, body []byte) (any, error),
) {
	received := time.Now().UTC()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeInvalidRequest, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		} else {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "failed to read request body")
		}
		return
	}

	payload, err := run(r.Context(), body)
	code := codeOK
	if err != nil {
		status, c, message := classifyError(err)
		code = c
		if status == http.StatusInternalServerError {
			s.logger.Error("operation failed", "request_id", requestID, "operation", op, "error", err)
		}
		writeError(w, status, code, message)
	} else {
		writeJSON(w, http.StatusOK, payload)
	}

	s.audit(r.Context(), persistence.RequestRecord{
		ID:         requestID,
		Operation:  op,
		Input:      auditInput(body),
		Code:       code,
		HTTPStatus: w.status,
		Duration:   time.Since(received),
		ReceivedAt: received,
	})
}

func (s *Server) evaluate(ctx context.Context, body []byte) (any, error) {
	var req EvaluateRequest
	if err := decodeStrict(body, &req); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"hole": req.Hole, "board": req.Board}); err != nil {
		return nil, err
	}
	return s.engine.Evaluate(ctx, req.Hole, req.Board)
}

func (s *Server) compare(ctx context.Context, body []byte) (any, error) {
	var req CompareRequest
	if err := decodeStrict(body, &req); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"hole1": req.Hole1, "hole2": req.Hole2, "board": req.Board}); err != nil {
		return nil, err
	}
	return s.engine.Compare(ctx, req.Hole1, req.Hole2, req.Board)
}

func (s *Server) equity(ctx context.Context, body []byte) (any, error) {
	var req EquityRequest
	if err := decodeStrict(body, &req); err != nil {
		return nil, err
	}
	opts, err := s.validateEquityOptions(req.Options)
	if err != nil {
		return nil, err
	}
	return s.engine.Equity(ctx, engine.EquityInput{
		Players: req.Players,
		Board:   req.Board,
		Dead:    req.Dead,
		Options: opts,
	})
}

func (s *Server) validateEquityOptions(in *EquityOptions) (equity.Options, error) {
	if in == nil {
		return equity.Options{}, nil
	}
	if in.Iterations < 0 {
		return equity.Options{}, badRequest("iterations must not be negative")
	}
	if in.Iterations > s.cfg.MaxIterations {
		return equity.Options{}, badRequest(fmt.Sprintf("iterations must not exceed %d", s.cfg.MaxIterations))
	}
	if in.ExactMaxCombos < 0 {
		return equity.Options{}, badRequest("exact_max_combos must not be negative")
	}
	return equity.Options{
		Mode:           equity.Mode(in.Mode),
		Iterations:     in.Iterations,
		Seed:           in.Seed,
		ExactMaxCombos: in.ExactMaxCombos,
	}, nil
}

func (s *Server) outs(ctx context.Context, body []byte) (any, error) {
	var req OutsRequest
	if err := decodeStrict(body, &req); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"hero": req.Hero, "villain": req.Villain}); err != nil {
		return nil, err
	}
	return s.engine.Outs(ctx, engine.OutsInput{
		Hero:    req.Hero,
		Villain: req.Villain,
		Board:   req.Board,
		Dead:    req.Dead,
	})
}

func (s *Server) canonical(ctx context.Context, body []byte) (any, error) {
	var req CanonicalRequest
	if err := decodeStrict(body, &req); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"cards": req.Cards}); err != nil {
		return nil, err
	}
	return s.engine.Canonical(ctx, req.Cards, req.Known)
}

func (s *Server) audit(ctx context.Context, record persistence.RequestRecord) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := s.repo.RecordRequest(ctx, record); err != nil {
		s.logger.Warn("failed to record request", "request_id", record.ID, "operation", record.Operation, "error", err)
	}
}

// auditInput compacts valid JSON bodies and wraps anything else as a JSON string.
func auditInput(body []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err == nil && buf.Len() > 0 {
		return buf.Bytes()
	}
	raw, _ := json.Marshal(string(body))
	return raw
}

type requestError struct {
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(message string) error {
	return &requestError{message: message}
}

func decodeStrict(body []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	if dec.More() {
		return badRequest("invalid request body: trailing data")
	}
	return nil
}

func requireFields(fields map[string]string) error {
	for _, name := range []string{"hole", "hole1", "hole2", "board", "hero", "villain", "cards"} {
		value, ok := fields[name]
		if ok && value == "" {
			return badRequest(name + " is required")
		}
	}
	return nil
}

const (
	codeOK                      = "ok"
	codeInvalidRequest          = "invalid_request"
	codeNotFound                = "not_found"
	codeMethodNotAllowed        = "method_not_allowed"
	codeParse                   = "parse_error"
	codeDuplicateCard           = "duplicate_card"
	codeInvalidPlayerCount      = "invalid_player_count"
	codeInvalidBoardLength      = "invalid_board_length"
	codeInvalidOutsPrecondition = "invalid_outs_precondition"
	codeDeckExhausted           = "deck_exhausted"
	codeInvalidMode             = "invalid_mode"
	codeTimeout                 = "timeout"
	codeCancelled               = "cancelled"
	codeInternal                = "internal"
)

var taxonomy = []struct {
	err  error
	code string
}{
	{domain.ErrParse, codeParse},
	{domain.ErrDuplicateCard, codeDuplicateCard},
	{domain.ErrInvalidPlayerCount, codeInvalidPlayerCount},
	{domain.ErrInvalidBoardLength, codeInvalidBoardLength},
	{domain.ErrInvalidOutsPrecondition, codeInvalidOutsPrecondition},
	{domain.ErrDeckExhausted, codeDeckExhausted},
	{equity.ErrInvalidMode, codeInvalidMode},
	{equity.ErrTooManyIterations, codeInvalidRequest},
}

func classifyError(err error) (int, string, string) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, codeInvalidRequest, reqErr.message
	}
	for _, entry := range taxonomy {
		if errors.Is(err, entry.err) {
			return http.StatusBadRequest, entry.code, err.Error()
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, codeTimeout, "computation timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, codeCancelled, "request cancelled"
	}
	return http.StatusInternalServerError, codeInternal, "internal error"
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}
