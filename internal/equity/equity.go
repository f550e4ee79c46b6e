// Package equity computes win, tie and lose fractions over every legal completion of a
// partial board, by exact enumeration or seeded Monte Carlo sampling.
package equity

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/imaddar/poker-arena/services/equity/internal/domain"
	"github.com/imaddar/poker-arena/services/equity/internal/isomorph"
	"github.com/imaddar/poker-arena/services/equity/internal/rules"
)

const (
	DefaultIterations     = 10_000
	DefaultExactMaxCombos = 200_000

	// MaxIterations keeps split credit for a 23-player table within int64.
	MaxIterations = 1_000_000_000

	minPlayers    = 2
	checkInterval = 4096
)

var (
	ErrInvalidMode       = errors.New("mode must be one of auto, exact, mc")
	ErrTooManyIterations = fmt.Errorf("iterations must not exceed %d", MaxIterations)
)

type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeExact      Mode = "exact"
	ModeMonteCarlo Mode = "mc"
)

type Options struct {
	Mode           Mode
	Iterations     int
	Seed           *int64
	ExactMaxCombos int
	// Workers bounds goroutines used by exact enumeration. Zero means GOMAXPROCS.
	Workers int
	// DisableSymmetry evaluates every completion literally instead of one per suit orbit.
	DisableSymmetry bool
}

func (o Options) withDefaults() (Options, error) {
	switch o.Mode {
	case "":
		o.Mode = ModeAuto
	case ModeAuto, ModeExact, ModeMonteCarlo:
	default:
		return o, fmt.Errorf("%w: got %q", ErrInvalidMode, o.Mode)
	}
	if o.Iterations <= 0 {
		o.Iterations = DefaultIterations
	}
	if o.Iterations > MaxIterations {
		return o, fmt.Errorf("%w: got %d", ErrTooManyIterations, o.Iterations)
	}
	if o.ExactMaxCombos <= 0 {
		o.ExactMaxCombos = DefaultExactMaxCombos
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o, nil
}

type Request struct {
	Holes []domain.Hole
	Board domain.Board
	// Dead cards are removed from the deck without belonging to anyone.
	Dead []domain.Card
}

type Result struct {
	Win     []float64 `json:"win"`
	Tie     []float64 `json:"tie"`
	Lose    []float64 `json:"lose"`
	Equity  []float64 `json:"equity"`
	Samples float64   `json:"samples"`
	Mode    Mode      `json:"mode"`
	// Classes counts completions actually evaluated after suit-symmetry reduction.
	Classes int    `json:"classes"`
	Seed    *int64 `json:"seed,omitempty"`
}

// Validate checks every precondition Calculate relies on.
func (r Request) Validate() error {
	if len(r.Holes) < minPlayers {
		return &domain.InvalidPlayerCountError{Got: len(r.Holes), Min: minPlayers}
	}
	if !domain.ValidBoardLength(len(r.Board)) {
		return &domain.InvalidBoardLengthError{Got: len(r.Board)}
	}
	groups := make([][]domain.Card, 0, len(r.Holes)+2)
	for _, hole := range r.Holes {
		hole := hole
		groups = append(groups, hole[:])
	}
	groups = append(groups, r.Board, r.Dead)
	if err := domain.CheckDistinct(groups...); err != nil {
		return err
	}
	used := 2*len(r.Holes) + len(r.Board) + len(r.Dead)
	if domain.DeckSize-used < domain.BoardSize-len(r.Board) {
		return domain.ErrDeckExhausted
	}
	return nil
}

// Combos returns how many distinct board completions a request has.
func (r Request) Combos() int64 {
	used := 2*len(r.Holes) + len(r.Board) + len(r.Dead)
	return binomial(domain.DeckSize-used, domain.BoardSize-len(r.Board))
}

// Calculate validates the request and runs the mode selected by opts.
func Calculate(ctx context.Context, req Request, opts Options) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	t := newTable(req, opts)
	mode := opts.Mode
	if mode == ModeAuto {
		mode = ModeMonteCarlo
		if req.Combos() <= int64(opts.ExactMaxCombos) {
			mode = ModeExact
		}
	}

	if mode == ModeExact {
		tl, err := t.enumerate(ctx, opts.Workers, t.missing == domain.BoardSize)
		if err != nil {
			return Result{}, err
		}
		return tl.result(ModeExact, nil), nil
	}

	seed := int64(0)
	if opts.Seed != nil {
		seed = *opts.Seed
	} else if seed, err = rules.NewSeed(); err != nil {
		return Result{}, err
	}
	tl, err := t.sample(ctx, rules.NewSeededSampler(seed), opts.Iterations)
	if err != nil {
		return Result{}, err
	}
	res := tl.result(ModeMonteCarlo, &seed)
	if t.missing == 0 {
		res.Samples = float64(opts.Iterations)
	}
	return res, nil
}

// table is the immutable per-call view of a request.
type table struct {
	holes     []domain.Hole
	board     [domain.BoardSize]domain.Card
	known     int
	missing   int
	remaining []domain.Card
	group     isomorph.Group
	unit      int64
}

func newTable(req Request, opts Options) *table {
	t := &table{
		holes:   append([]domain.Hole(nil), req.Holes...),
		known:   len(req.Board),
		missing: domain.BoardSize - len(req.Board),
		unit:    lcmUpTo(len(req.Holes)),
	}
	copy(t.board[:], req.Board)

	groups := make([][]domain.Card, 0, len(req.Holes)+2)
	for _, hole := range req.Holes {
		hole := hole
		groups = append(groups, hole[:])
	}
	groups = append(groups, req.Board, req.Dead)
	t.remaining = domain.RemainingDeck(groups...)

	t.group = isomorph.Trivial()
	if !opts.DisableSymmetry {
		// Each hole, the board and the dead cards are fixed as separate groups so a permutation
		// never swaps cards between players.
		t.group = isomorph.SymmetryGroup(groups...)
	}
	return t
}

func binomial(n, k int) int64 {
	if k < 0 || n < k {
		return 0
	}
	out := int64(1)
	for i := 1; i <= k; i++ {
		out = out * int64(n-k+i) / int64(i)
	}
	return out
}

func lcmUpTo(n int) int64 {
	out := int64(1)
	for i := int64(2); i <= int64(n); i++ {
		out = out / gcd(out, i) * i
	}
	return out
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
