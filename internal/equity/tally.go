package equity

import (
	"github.com/imaddar/poker-arena/services/equity/internal/rules"
)

// tally accumulates integer outcome weights. Split-pot credit is kept in units of 1/unit,
// where unit is divisible by every possible tie size, so sums are exact and independent of
// the order partial tallies are merged in.
type tally struct {
	win     []int64
	tie     []int64
	share   []int64
	samples int64
	classes int
	unit    int64
}

func newTally(players int, unit int64) *tally {
	return &tally{
		win:   make([]int64, players),
		tie:   make([]int64, players),
		share: make([]int64, players),
		unit:  unit,
	}
}

func (tl *tally) record(scores []rules.Score, weight int64) {
	best := scores[0]
	winners := 1
	for _, s := range scores[1:] {
		switch {
		case s > best:
			best = s
			winners = 1
		case s == best:
			winners++
		}
	}

	credit := weight * tl.unit / int64(winners)
	for i, s := range scores {
		if s != best {
			continue
		}
		if winners == 1 {
			tl.win[i] += weight
		} else {
			tl.tie[i] += weight
		}
		tl.share[i] += credit
	}
	tl.samples += weight
	tl.classes++
}

func (tl *tally) merge(other *tally) {
	for i := range tl.win {
		tl.win[i] += other.win[i]
		tl.tie[i] += other.tie[i]
		tl.share[i] += other.share[i]
	}
	tl.samples += other.samples
	tl.classes += other.classes
}

func (tl *tally) result(mode Mode, seed *int64) Result {
	players := len(tl.win)
	out := Result{
		Win:     make([]float64, players),
		Tie:     make([]float64, players),
		Lose:    make([]float64, players),
		Equity:  make([]float64, players),
		Samples: float64(tl.samples),
		Mode:    mode,
		Classes: tl.classes,
		Seed:    seed,
	}
	if tl.samples == 0 {
		return out
	}
	total := float64(tl.samples)
	for i := 0; i < players; i++ {
		out.Win[i] = float64(tl.win[i]) / total
		out.Tie[i] = float64(tl.tie[i]) / total
		out.Lose[i] = float64(tl.samples-tl.win[i]-tl.tie[i]) / total
		out.Equity[i] = float64(tl.share[i]) / (total * float64(tl.unit))
	}
	return out
}
