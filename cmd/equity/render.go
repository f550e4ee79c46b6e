package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/imaddar/poker-arena/services/equity/internal/domain"
	"github.com/imaddar/poker-arena/services/equity/internal/engine"
)

func renderEvaluate(res engine.EvaluateResult) (string, error) {
	return renderTable(pterm.TableData{
		{"Hole", "Board", "Hand", "Tiebreak"},
		{domain.CardsString(res.Hole), domain.CardsString(res.Board), res.HandRank.Name, formatTiebreak(res.HandRank.Tiebreak)},
	})
}

func renderCompare(res engine.CompareResult) (string, error) {
	table, err := renderTable(pterm.TableData{
		{"Hand", "Category", "Tiebreak"},
		{"1", res.Hand1.Name, formatTiebreak(res.Hand1.Tiebreak)},
		{"2", res.Hand2.Name, formatTiebreak(res.Hand2.Tiebreak)},
	})
	if err != nil {
		return "", err
	}
	return table + fmt.Sprintf("\nResult: %s (%d)\n", res.Comparison.Result, res.Comparison.Value), nil
}

func renderEquity(res engine.EquityResult) (string, error) {
	data := pterm.TableData{{"Player", "Hole", "Win", "Tie", "Lose", "Equity"}}
	for i, hole := range res.Players {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			domain.CardsString(hole),
			formatPercent(res.Equity.Win[i]),
			formatPercent(res.Equity.Tie[i]),
			formatPercent(res.Equity.Lose[i]),
			formatPercent(res.Equity.Equity[i]),
		})
	}
	table, err := renderTable(data)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(table)
	b.WriteString("\n")
	board := domain.CardsString(res.Board)
	if board == "" {
		board = "(preflop)"
	}
	fmt.Fprintf(&b, "Board:   %s\n", board)
	if len(res.Dead) > 0 {
		fmt.Fprintf(&b, "Dead:    %s\n", domain.CardsString(res.Dead))
	}
	fmt.Fprintf(&b, "Mode:    %s\n", res.Equity.Mode)
	fmt.Fprintf(&b, "Samples: %s", humanize.Comma(int64(res.Equity.Samples)))
	if res.Equity.Classes > 0 && float64(res.Equity.Classes) < res.Equity.Samples {
		fmt.Fprintf(&b, " (%s evaluated)", humanize.Comma(int64(res.Equity.Classes)))
	}
	b.WriteString("\n")
	if res.Equity.Seed != nil {
		fmt.Fprintf(&b, "Seed:    %d\n", *res.Equity.Seed)
	}
	return b.String(), nil
}

func renderOuts(res engine.OutsResult) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Win outs: %d  Tie outs: %d  of %d river cards\n", res.WinOuts, res.TieOuts, res.TotalRiverCards)
	fmt.Fprintf(&b, "Baseline: win %s  tie %s\n", formatPercent(res.BaselineWin), formatPercent(res.BaselineTie))
	if res.Suppressed {
		b.WriteString("Outs suppressed: hero is already far ahead\n")
		return b.String(), nil
	}
	if res.WinOuts+res.TieOuts == 0 {
		return b.String(), nil
	}

	data := pterm.TableData{{"Card", "Result", "Hero makes"}}
	for _, out := range res.WinOutsCards {
		data = append(data, []string{out.Card, "win", out.Name})
	}
	for _, out := range res.TieOutsCards {
		data = append(data, []string{out.Card, "tie", out.Name})
	}
	table, err := renderTable(data)
	if err != nil {
		return "", err
	}
	b.WriteString("\n")
	b.WriteString(table)
	return b.String(), nil
}

func renderCanonical(res engine.CanonicalResult) (string, error) {
	return renderTable(pterm.TableData{
		{"Key", "Constrained key", "Suits", "Estimated count"},
		{res.Key, res.ConstrainedKey, strconv.Itoa(res.UniqueSuits), humanize.Comma(int64(res.EstimatedCount))},
	})
}

func renderTable(data pterm.TableData) (string, error) {
	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return "", err
	}
	return out + "\n", nil
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func formatTiebreak(ranks []int) string {
	parts := make([]string, len(ranks))
	for i, r := range ranks {
		parts[i] = strconv.Itoa(r)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
