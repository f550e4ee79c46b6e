package outs

import (
	"context"
	"fmt"

	"github.com/imaddar/poker-arena/services/equity/internal/domain"
	"github.com/imaddar/poker-arena/services/equity/internal/equity"
	"github.com/imaddar/poker-arena/services/equity/internal/rules"
)

const turnBoardSize = 4

// Policy holds caller-level display decisions. The engine never suppresses on its own.
type Policy struct {
	// SuppressAtEquity marks the result suppressed once hero's baseline win probability
	// reaches this value. Zero disables suppression.
	SuppressAtEquity float64
}

type Request struct {
	Hero    domain.Hole
	Villain domain.Hole
	Board   domain.Board
	Dead    []domain.Card
}

type Out struct {
	Card     domain.Card        `json:"card"`
	Category rules.HandCategory `json:"category"`
}

type Result struct {
	WinOuts         []Out   `json:"win_outs"`
	TieOuts         []Out   `json:"tie_outs"`
	TotalRiverCards int     `json:"total_river_cards"`
	BaselineWin     float64 `json:"baseline_win"`
	BaselineTie     float64 `json:"baseline_tie"`
	Suppressed      bool    `json:"suppressed"`
}

func (r Result) WinCards() []domain.Card {
	return outCards(r.WinOuts)
}

func (r Result) TieCards() []domain.Card {
	return outCards(r.TieOuts)
}

// Calculate deals each remaining card as the river and compares hero against villain.
// Win and tie outs are listed in deck order.
func Calculate(ctx context.Context, req Request, policy Policy) (Result, error) {
	if len(req.Board) != turnBoardSize {
		return Result{}, &domain.InvalidOutsPreconditionError{Players: 2, BoardLen: len(req.Board)}
	}
	if err := domain.CheckDistinct(req.Hero[:], req.Villain[:], req.Board, req.Dead); err != nil {
		return Result{}, err
	}

	baseline, err := equity.Calculate(ctx, equity.Request{
		Holes: []domain.Hole{req.Hero, req.Villain},
		Board: req.Board,
		Dead:  req.Dead,
	}, equity.Options{Mode: equity.ModeExact, Workers: 1})
	if err != nil {
		return Result{}, fmt.Errorf("baseline equity: %w", err)
	}

	var hero, villain [7]domain.Card
	hero[0], hero[1] = req.Hero[0], req.Hero[1]
	villain[0], villain[1] = req.Villain[0], req.Villain[1]
	copy(hero[2:], req.Board)
	copy(villain[2:], req.Board)

	river := domain.RemainingDeck(req.Hero[:], req.Villain[:], req.Board, req.Dead)
	result := Result{
		TotalRiverCards: len(river),
		BaselineWin:     baseline.Win[0],
		BaselineTie:     baseline.Tie[0],
	}
	for _, card := range river {
		hero[6], villain[6] = card, card
		heroScore := rules.EvaluateScore(hero[:])
		villainScore := rules.EvaluateScore(villain[:])
		out := Out{Card: card, Category: heroScore.Category()}
		switch {
		case heroScore > villainScore:
			result.WinOuts = append(result.WinOuts, out)
		case heroScore == villainScore:
			result.TieOuts = append(result.TieOuts, out)
		}
	}

	result.Suppressed = policy.SuppressAtEquity > 0 && result.BaselineWin >= policy.SuppressAtEquity
	return result, nil
}

func outCards(outs []Out) []domain.Card {
	cards := make([]domain.Card, len(outs))
	for i, out := range outs {
		cards[i] = out.Card
	}
	return cards
}
