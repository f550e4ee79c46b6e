package equity

import (
	"context"

	"github.com/imaddar/poker-arena/services/equity/internal/domain"
	"github.com/imaddar/poker-arena/services/equity/internal/rules"
)

// sample draws iterations random completions from a private copy of the remaining deck.
func (t *table) sample(ctx context.Context, sampler rules.Sampler, iterations int) (*tally, error) {
	tl := newTally(len(t.holes), t.unit)
	scores := make([]rules.Score, len(t.holes))
	board := t.board

	if t.missing == 0 {
		// Every iteration would replay the same showdown. Calculate reports iterations as samples.
		t.showdown(&board, scores)
		tl.record(scores, 1)
		return tl, nil
	}

	deck := append([]domain.Card(nil), t.remaining...)
	for i := 0; i < iterations; i++ {
		if i%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		copy(board[t.known:], sampler.Draw(deck, t.missing))
		t.showdown(&board, scores)
		tl.record(scores, 1)
	}
	return tl, nil
}
