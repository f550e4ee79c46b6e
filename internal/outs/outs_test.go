package outs

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/imaddar/poker-arena/services/equity/internal/domain"
	"github.com/imaddar/poker-arena/services/equity/internal/rules"
)

func TestCalculate_FlushDrawOuts(t *testing.T) {
	t.Parallel()

	res, err := Calculate(context.Background(), Request{
		Hero:    hole(t, "14h 11h"),
		Villain: hole(t, "13s 13d"),
		Board:   board(t, "2h 7h 9c 4s"),
	}, Policy{})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if res.TotalRiverCards != 44 {
		t.Fatalf("expected 44 river cards, got %d", res.TotalRiverCards)
	}

	flushOuts := map[domain.Card]struct{}{}
	for _, out := range res.WinOuts {
		if out.Category == rules.HandCategoryFlush {
			flushOuts[out.Card] = struct{}{}
		}
	}
	wantHearts := []string{"3h", "4h", "5h", "6h", "8h", "9h", "10h", "12h", "13h"}
	if len(flushOuts) != len(wantHearts) {
		t.Fatalf("expected %d flush outs, got %d: %v", len(wantHearts), len(flushOuts), res.WinCards())
	}
	for _, raw := range wantHearts {
		card := mustCard(t, raw)
		if _, ok := flushOuts[card]; !ok {
			t.Fatalf("expected %s among flush win outs", raw)
		}
	}

	// Pairing the ace also wins: three aces left in the deck.
	if len(res.WinOuts) != len(wantHearts)+3 {
		t.Fatalf("expected %d win outs, got %d: %v", len(wantHearts)+3, len(res.WinOuts), res.WinCards())
	}
	if len(res.TieOuts) != 0 {
		t.Fatalf("expected no tie outs, got %v", res.TieCards())
	}

	wantBaseline := float64(len(res.WinOuts)) / float64(res.TotalRiverCards)
	if math.Abs(res.BaselineWin-wantBaseline) > 1e-12 {
		t.Fatalf("expected baseline win %.6f, got %.6f", wantBaseline, res.BaselineWin)
	}
	if res.Suppressed {
		t.Fatal("expected no suppression with zero policy")
	}
}

func TestCalculate_TieOutsWhenBoardPlays(t *testing.T) {
	t.Parallel()

	res, err := Calculate(context.Background(), Request{
		Hero:    hole(t, "2c 3d"),
		Villain: hole(t, "2d 3c"),
		Board:   board(t, "14s 13s 12s 11s"),
	}, Policy{})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if len(res.WinOuts) != 0 {
		t.Fatalf("expected no win outs for mirrored hands, got %v", res.WinCards())
	}
	if len(res.TieOuts) != res.TotalRiverCards {
		t.Fatalf("expected every river card to tie, got %d of %d", len(res.TieOuts), res.TotalRiverCards)
	}
	if res.BaselineTie != 1 {
		t.Fatalf("expected baseline tie 1, got %v", res.BaselineTie)
	}
}

func TestCalculate_SuppressionPolicy(t *testing.T) {
	t.Parallel()

	req := Request{
		Hero:    hole(t, "14h 14d"),
		Villain: hole(t, "2c 7d"),
		Board:   board(t, "14s 14c 9h 3d"),
	}

	res, err := Calculate(context.Background(), req, Policy{SuppressAtEquity: 0.95})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if !res.Suppressed {
		t.Fatalf("expected suppression at baseline win %.4f", res.BaselineWin)
	}

	res, err = Calculate(context.Background(), req, Policy{})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if res.Suppressed {
		t.Fatal("expected suppression disabled by zero threshold")
	}
}

func TestCalculate_DeadCardsLeaveTheRiverDeck(t *testing.T) {
	t.Parallel()

	res, err := Calculate(context.Background(), Request{
		Hero:    hole(t, "14h 11h"),
		Villain: hole(t, "13s 13d"),
		Board:   board(t, "2h 7h 9c 4s"),
		Dead:    []domain.Card{mustCard(t, "3h"), mustCard(t, "14s")},
	}, Policy{})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if res.TotalRiverCards != 42 {
		t.Fatalf("expected 42 river cards, got %d", res.TotalRiverCards)
	}
	for _, card := range res.WinCards() {
		if card == mustCard(t, "3h") || card == mustCard(t, "14s") {
			t.Fatalf("dead card %v listed as out", card)
		}
	}
}

func TestCalculate_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	_, err := Calculate(context.Background(), Request{
		Hero:    hole(t, "14h 11h"),
		Villain: hole(t, "13s 13d"),
		Board:   board(t, "2h 7h 9c"),
	}, Policy{})
	if !errors.Is(err, domain.ErrInvalidOutsPrecondition) {
		t.Fatalf("expected ErrInvalidOutsPrecondition, got %v", err)
	}

	_, err = Calculate(context.Background(), Request{
		Hero:    hole(t, "14h 11h"),
		Villain: hole(t, "13s 13d"),
		Board:   board(t, "2h 7h 9c 14h"),
	}, Policy{})
	if !errors.Is(err, domain.ErrDuplicateCard) {
		t.Fatalf("expected ErrDuplicateCard, got %v", err)
	}
}

func hole(t *testing.T, s string) domain.Hole {
	t.Helper()
	h, err := domain.ParseHole(s)
	if err != nil {
		t.Fatalf("ParseHole(%q) failed: %v", s, err)
	}
	return h
}

func board(t *testing.T, s string) domain.Board {
	t.Helper()
	b, err := domain.ParseBoard(s)
	if err != nil {
		t.Fatalf("ParseBoard(%q) failed: %v", s, err)
	}
	return b
}

func mustCard(t *testing.T, s string) domain.Card {
	t.Helper()
	c, err := domain.ParseCard(s)
	if err != nil {
		t.Fatalf("ParseCard(%q) failed: %v", s, err)
	}
	return c
}
