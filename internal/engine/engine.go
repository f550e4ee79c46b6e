// Package engine exposes the evaluator, equity and outs calculators behind string inputs.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/imaddar/poker-arena/services/equity/internal/cache"
	"github.com/imaddar/poker-arena/services/equity/internal/domain"
	"github.com/imaddar/poker-arena/services/equity/internal/equity"
	"github.com/imaddar/poker-arena/services/equity/internal/isomorph"
	"github.com/imaddar/poker-arena/services/equity/internal/outs"
	"github.com/imaddar/poker-arena/services/equity/internal/rules"
)

const tracerName = "github.com/imaddar/poker-arena/services/equity/internal/engine"

const (
	DefaultMaxConcurrent = 4
	DefaultCacheSize     = 1024
)

type Config struct {
	// MaxConcurrent bounds equity and outs computations running at once.
	MaxConcurrent int64
	// CacheSize is the number of equity results kept. Negative disables caching.
	CacheSize int
	// ComputeTimeout caps a single equity or outs call. Zero means no cap.
	ComputeTimeout time.Duration
	// Workers is passed to exact enumeration. Zero means GOMAXPROCS.
	Workers int
	Policy  outs.Policy
}

type Engine struct {
	cfg    Config
	sem    *semaphore.Weighted
	memo   *cache.Memo[equity.Result]
	tracer trace.Tracer
}

func New(cfg Config) (*Engine, error) {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	e := &Engine{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		tracer: otel.Tracer(tracerName),
	}
	if cfg.CacheSize > 0 {
		memo, err := cache.New[equity.Result](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create equity cache: %w", err)
		}
		e.memo = memo
	}
	return e, nil
}

type HandRankView struct {
	Category int    `json:"category"`
	Name     string `json:"name"`
	Tiebreak []int  `json:"tiebreak"`
}

func newHandRankView(rank rules.HandRank) HandRankView {
	tiebreak := make([]int, len(rank.Tiebreak))
	for i, r := range rank.Tiebreak {
		tiebreak[i] = int(r)
	}
	return HandRankView{
		Category: int(rank.Category),
		Name:     rank.Category.String(),
		Tiebreak: tiebreak,
	}
}

type EvaluateResult struct {
	HandRank HandRankView  `json:"hand_rank"`
	Hole     []domain.Card `json:"hole"`
	Board    []domain.Card `json:"board"`
}

func (e *Engine) Evaluate(ctx context.Context, hole, board string) (EvaluateResult, error) {
	_, span := e.tracer.Start(ctx, "engine.Evaluate")
	defer span.End()

	h, b, err := parseShowdown(board, hole)
	if err != nil {
		return EvaluateResult{}, recordErr(span, err)
	}
	rank := rules.EvaluateBestHand(h[0].Cards(), b)
	span.SetAttributes(attribute.String("hand.category", rank.Category.String()))
	return EvaluateResult{
		HandRank: newHandRankView(rank),
		Hole:     h[0].Cards(),
		Board:    append([]domain.Card(nil), b...),
	}, nil
}

const (
	CompareHand1Wins = "hand1_wins"
	CompareHand2Wins = "hand2_wins"
	CompareTie       = "tie"
)

type Comparison struct {
	Result string `json:"result"`
	Value  int    `json:"value"`
}

type CompareResult struct {
	Hand1      HandRankView `json:"hand1"`
	Hand2      HandRankView `json:"hand2"`
	Comparison Comparison   `json:"comparison"`
}

func (e *Engine) Compare(ctx context.Context, hole1, hole2, board string) (CompareResult, error) {
	_, span := e.tracer.Start(ctx, "engine.Compare")
	defer span.End()

	holes, b, err := parseShowdown(board, hole1, hole2)
	if err != nil {
		return CompareResult{}, recordErr(span, err)
	}
	rank1 := rules.EvaluateBestHand(holes[0].Cards(), b)
	rank2 := rules.EvaluateBestHand(holes[1].Cards(), b)

	cmp := Comparison{Result: CompareTie}
	switch rules.CompareHandRank(rank1, rank2) {
	case 1:
		cmp = Comparison{Result: CompareHand1Wins, Value: 1}
	case -1:
		cmp = Comparison{Result: CompareHand2Wins, Value: -1}
	}
	return CompareResult{
		Hand1:      newHandRankView(rank1),
		Hand2:      newHandRankView(rank2),
		Comparison: cmp,
	}, nil
}

// parseShowdown parses holes plus a 3..5 card board and checks the cards are distinct.
func parseShowdown(board string, holes ...string) ([]domain.Hole, domain.Board, error) {
	parsed := make([]domain.Hole, len(holes))
	groups := make([][]domain.Card, 0, len(holes)+1)
	for i, raw := range holes {
		h, err := domain.ParseHole(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("hole %d: %w", i+1, err)
		}
		parsed[i] = h
		groups = append(groups, h[:])
	}
	b, err := domain.ParseBoard(board)
	if err != nil {
		return nil, nil, fmt.Errorf("board: %w", err)
	}
	if len(b) < 3 {
		return nil, nil, &domain.InvalidBoardLengthError{Got: len(b)}
	}
	if err := domain.CheckDistinct(append(groups, b)...); err != nil {
		return nil, nil, err
	}
	return parsed, b, nil
}

type EquityInput struct {
	Players []string
	Board   string
	// Dead entries may each hold one or more whitespace separated cards.
	Dead    []string
	Options equity.Options
}

type EquityResult struct {
	Equity  equity.Result   `json:"equity"`
	Players [][]domain.Card `json:"players"`
	Board   []domain.Card   `json:"board"`
	Dead    []domain.Card   `json:"dead"`
	// Cached is true when the result came from the memo or another request's computation.
	Cached bool `json:"cached"`
}

func (e *Engine) Equity(ctx context.Context, in EquityInput) (EquityResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Equity", trace.WithAttributes(
		attribute.Int("equity.players", len(in.Players)),
		attribute.String("equity.mode", string(in.Options.Mode)),
	))
	defer span.End()

	req, err := parseEquityInput(in)
	if err != nil {
		return EquityResult{}, recordErr(span, err)
	}
	if err := req.Validate(); err != nil {
		return EquityResult{}, recordErr(span, err)
	}

	opts := in.Options
	opts.Workers = e.cfg.Workers
	compute := func(ctx context.Context) (equity.Result, error) {
		return runBounded(ctx, e, func(ctx context.Context) (equity.Result, error) {
			return equity.Calculate(ctx, req, opts)
		})
	}

	var (
		res    equity.Result
		cached bool
	)
	key, cacheable := equityCacheKey(req, opts)
	if e.memo != nil && cacheable {
		res, cached, err = e.memo.Do(ctx, key, compute)
		res = cloneEquity(res)
	} else {
		res, err = compute(ctx)
	}
	if err != nil {
		return EquityResult{}, recordErr(span, err)
	}
	span.SetAttributes(
		attribute.String("equity.resolved_mode", string(res.Mode)),
		attribute.Float64("equity.samples", res.Samples),
		attribute.Bool("equity.cached", cached),
	)

	players := make([][]domain.Card, len(req.Holes))
	for i, h := range req.Holes {
		players[i] = h.Cards()
	}
	return EquityResult{
		Equity:  res,
		Players: players,
		Board:   append([]domain.Card{}, req.Board...),
		Dead:    append([]domain.Card{}, req.Dead...),
		Cached:  cached,
	}, nil
}

func parseEquityInput(in EquityInput) (equity.Request, error) {
	holes := make([]domain.Hole, len(in.Players))
	for i, raw := range in.Players {
		h, err := domain.ParseHole(raw)
		if err != nil {
			return equity.Request{}, fmt.Errorf("player %d: %w", i+1, err)
		}
		holes[i] = h
	}
	board, err := domain.ParseBoard(in.Board)
	if err != nil {
		return equity.Request{}, fmt.Errorf("board: %w", err)
	}
	dead, err := parseDead(in.Dead)
	if err != nil {
		return equity.Request{}, err
	}
	return equity.Request{Holes: holes, Board: board, Dead: dead}, nil
}

func parseDead(raw []string) ([]domain.Card, error) {
	var dead []domain.Card
	for _, entry := range raw {
		cards, err := domain.ParseCards(entry)
		if err != nil {
			return nil, fmt.Errorf("dead: %w", err)
		}
		dead = append(dead, cards...)
	}
	return dead, nil
}

// equityCacheKey returns the memo key for a request. Results that will come from exact
// enumeration are keyed up to suit relabeling; seeded Monte Carlo results depend on deck
// order and are keyed literally. Unseeded Monte Carlo is never cached.
func equityCacheKey(req equity.Request, opts equity.Options) (string, bool) {
	exact := opts.Mode == equity.ModeExact
	if opts.Mode == "" || opts.Mode == equity.ModeAuto {
		limit := opts.ExactMaxCombos
		if limit <= 0 {
			limit = equity.DefaultExactMaxCombos
		}
		exact = req.Combos() <= int64(limit)
	}

	groups := make([][]domain.Card, 0, len(req.Holes)+2)
	for _, h := range req.Holes {
		groups = append(groups, h.Cards())
	}
	groups = append(groups, req.Board, sortedCards(req.Dead))

	if exact {
		prefix := "exact|"
		if opts.DisableSymmetry {
			prefix = "exact-literal|"
		}
		return prefix + isomorph.RelabelKey(groups...), true
	}
	if opts.Seed == nil {
		return "", false
	}
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = domain.CardsString(sortedCards(g))
	}
	iterations := opts.Iterations
	if iterations <= 0 {
		iterations = equity.DefaultIterations
	}
	return fmt.Sprintf("mc|%d|%d|%s", *opts.Seed, iterations, strings.Join(parts, "|")), true
}

func sortedCards(cards []domain.Card) []domain.Card {
	out := append([]domain.Card(nil), cards...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index() < out[j].Index() })
	return out
}

func cloneEquity(r equity.Result) equity.Result {
	r.Win = append([]float64(nil), r.Win...)
	r.Tie = append([]float64(nil), r.Tie...)
	r.Lose = append([]float64(nil), r.Lose...)
	r.Equity = append([]float64(nil), r.Equity...)
	if r.Seed != nil {
		seed := *r.Seed
		r.Seed = &seed
	}
	return r
}

type OutsInput struct {
	Hero    string
	Villain string
	Board   string
	Dead    []string
}

type OutCard struct {
	Card     string `json:"card"`
	Category int    `json:"category"`
	Name     string `json:"name"`
}

type OutsResult struct {
	WinOuts         int       `json:"win_outs"`
	TieOuts         int       `json:"tie_outs"`
	WinOutsCards    []OutCard `json:"win_outs_cards"`
	TieOutsCards    []OutCard `json:"tie_outs_cards"`
	TotalRiverCards int       `json:"total_river_cards"`
	BaselineWin     float64   `json:"baseline_win"`
	BaselineTie     float64   `json:"baseline_tie"`
	Suppressed      bool      `json:"suppressed"`
}

func (e *Engine) Outs(ctx context.Context, in OutsInput) (OutsResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Outs")
	defer span.End()

	hero, err := domain.ParseHole(in.Hero)
	if err != nil {
		return OutsResult{}, recordErr(span, fmt.Errorf("hero: %w", err))
	}
	villain, err := domain.ParseHole(in.Villain)
	if err != nil {
		return OutsResult{}, recordErr(span, fmt.Errorf("villain: %w", err))
	}
	board, err := domain.ParseBoard(in.Board)
	if err != nil {
		return OutsResult{}, recordErr(span, fmt.Errorf("board: %w", err))
	}
	dead, err := parseDead(in.Dead)
	if err != nil {
		return OutsResult{}, recordErr(span, err)
	}

	req := outs.Request{Hero: hero, Villain: villain, Board: board, Dead: dead}
	res, err := runBounded(ctx, e, func(ctx context.Context) (outs.Result, error) {
		return outs.Calculate(ctx, req, e.cfg.Policy)
	})
	if err != nil {
		return OutsResult{}, recordErr(span, err)
	}
	span.SetAttributes(attribute.Int("outs.win", len(res.WinOuts)), attribute.Int("outs.tie", len(res.TieOuts)))

	return OutsResult{
		WinOuts:         len(res.WinOuts),
		TieOuts:         len(res.TieOuts),
		WinOutsCards:    outCards(res.WinOuts),
		TieOutsCards:    outCards(res.TieOuts),
		TotalRiverCards: res.TotalRiverCards,
		BaselineWin:     res.BaselineWin,
		BaselineTie:     res.BaselineTie,
		Suppressed:      res.Suppressed,
	}, nil
}

func outCards(list []outs.Out) []OutCard {
	out := make([]OutCard, len(list))
	for i, o := range list {
		out[i] = OutCard{Card: o.Card.String(), Category: int(o.Category), Name: o.Category.String()}
	}
	return out
}

type CanonicalResult struct {
	Key            string `json:"key"`
	ConstrainedKey string `json:"constrained_key"`
	UniqueSuits    int    `json:"unique_suits"`
	EstimatedCount int    `json:"estimated_count"`
}

// Canonical renders the suit-isomorphism keys for cards. Suits appearing in known are
// treated as fixed when building the constrained key.
func (e *Engine) Canonical(ctx context.Context, cards, known string) (CanonicalResult, error) {
	_, span := e.tracer.Start(ctx, "engine.Canonical")
	defer span.End()

	parsed, err := domain.ParseCards(cards)
	if err != nil {
		return CanonicalResult{}, recordErr(span, fmt.Errorf("cards: %w", err))
	}
	knownCards, err := domain.ParseCards(known)
	if err != nil {
		return CanonicalResult{}, recordErr(span, fmt.Errorf("known: %w", err))
	}
	if err := domain.CheckDistinct(parsed); err != nil {
		return CanonicalResult{}, recordErr(span, err)
	}

	hand := isomorph.Canonicalize(parsed)
	return CanonicalResult{
		Key:            hand.Key,
		ConstrainedKey: isomorph.CanonicalizeConstrained(parsed, knownCards).Key,
		UniqueSuits:    hand.UniqueSuits(),
		EstimatedCount: isomorph.CountIsomorphicCombinations(hand, len(domain.Suits)),
	}, nil
}

// runBounded holds one semaphore slot and applies the compute timeout around fn.
func runBounded[T any](ctx context.Context, e *Engine, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer e.sem.Release(1)

	if e.cfg.ComputeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ComputeTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
