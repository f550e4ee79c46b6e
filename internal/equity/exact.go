package equity

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/imaddar/poker-arena/services/equity/internal/domain"
	"github.com/imaddar/poker-arena/services/equity/internal/rules"
)

// enumerate visits every completion of the board, evaluating one representative per suit
// orbit. Work is split by the first completion card; each split keeps its own tally.
func (t *table) enumerate(ctx context.Context, workers int, preflop bool) (*tally, error) {
	if t.missing == 0 {
		return t.river(), nil
	}

	n := len(t.remaining)
	splits := n - t.missing + 1
	partials := make([]*tally, splits)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for first := 0; first < splits; first++ {
		first := first
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tl := newTally(len(t.holes), t.unit)
			var err error
			if preflop {
				err = t.walkPreflop(gctx, first, tl)
			} else {
				err = t.walk(gctx, first, tl)
			}
			partials[first] = tl
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := newTally(len(t.holes), t.unit)
	for _, p := range partials {
		total.merge(p)
	}
	return total, nil
}

func (t *table) river() *tally {
	tl := newTally(len(t.holes), t.unit)
	scores := make([]rules.Score, len(t.holes))
	board := t.board
	t.showdown(&board, scores)
	tl.record(scores, 1)
	return tl
}

// walk is the general enumerator: every k-subset of the remaining deck whose smallest
// index is first, in lexicographic order.
func (t *table) walk(ctx context.Context, first int, tl *tally) error {
	k := t.missing
	n := len(t.remaining)
	board := t.board
	scores := make([]rules.Score, len(t.holes))

	idx := make([]int, k)
	for i := range idx {
		idx[i] = first + i
	}

	for steps := 1; ; steps++ {
		var mask uint64
		for i, j := range idx {
			card := t.remaining[j]
			board[t.known+i] = card
			mask |= card.Bit()
		}
		if ok, orbit := t.group.Representative(mask); ok {
			t.showdown(&board, scores)
			tl.record(scores, int64(orbit))
		}
		if steps%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		i := k - 1
		for i >= 1 && idx[i] == n-k+i {
			i--
		}
		if i < 1 {
			return nil
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// walkPreflop fills all five board slots with fixed-depth loops and running masks.
// It visits the same completions as walk in the same order.
func (t *table) walkPreflop(ctx context.Context, a int, tl *tally) error {
	rem := t.remaining
	n := len(rem)
	scores := make([]rules.Score, len(t.holes))

	var board [domain.BoardSize]domain.Card
	board[0] = rem[a]
	ma := rem[a].Bit()
	for b := a + 1; b < n-3; b++ {
		board[1] = rem[b]
		mb := ma | rem[b].Bit()
		for c := b + 1; c < n-2; c++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			board[2] = rem[c]
			mc := mb | rem[c].Bit()
			for d := c + 1; d < n-1; d++ {
				board[3] = rem[d]
				md := mc | rem[d].Bit()
				for e := d + 1; e < n; e++ {
					board[4] = rem[e]
					if ok, orbit := t.group.Representative(md | rem[e].Bit()); ok {
						t.showdown(&board, scores)
						tl.record(scores, int64(orbit))
					}
				}
			}
		}
	}
	return nil
}

func (t *table) showdown(board *[domain.BoardSize]domain.Card, scores []rules.Score) {
	var hand [7]domain.Card
	copy(hand[2:], board[:])
	for i, hole := range t.holes {
		hand[0], hand[1] = hole[0], hole[1]
		scores[i] = rules.EvaluateScore(hand[:])
	}
}
