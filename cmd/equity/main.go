package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/imaddar/poker-arena/services/equity/internal/engine"
	"github.com/imaddar/poker-arena/services/equity/internal/equity"
	"github.com/imaddar/poker-arena/services/equity/internal/equityclient"
	"github.com/imaddar/poker-arena/services/equity/internal/outs"
)

const usage = `usage: equity <command> [flags]

commands:
  evaluate   -hole "14h 13h" -board "12h 11h 10h"
  compare    -hole1 "14h 14d" -hole2 "13h 13d" -board "2c 7s 9d"
  equity     -player "14h 14d" -player "13h 13d" [-board ...] [-dead ...] [-mode auto|exact|mc]
  outs       -hero "14h 11h" -villain "13s 13d" -board "2h 7h 9c 4s"
  canonical  -cards "14h 13h" [-known "14h"]

every command accepts -json to print the raw result and -remote URL to
ask a running equityd instead of computing locally`

func main() {
	logger := slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, logger))
}

// backend is satisfied by both the local engine and the equityd client.
type backend interface {
	Evaluate(ctx context.Context, hole, board string) (engine.EvaluateResult, error)
	Compare(ctx context.Context, hole1, hole2, board string) (engine.CompareResult, error)
	Equity(ctx context.Context, in engine.EquityInput) (engine.EquityResult, error)
	Outs(ctx context.Context, in engine.OutsInput) (engine.OutsResult, error)
	Canonical(ctx context.Context, cards, known string) (engine.CanonicalResult, error)
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) int {
	if len(args) == 0 {
		fmt.Fprintln(stdout, usage)
		return 2
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(stdout)
	asJSON := fs.Bool("json", false, "print the raw result as JSON")
	board := fs.String("board", "", "community cards")
	var dead stringList
	fs.Var(&dead, "dead", "dead cards, repeatable")
	remote := fs.String("remote", "", "base URL of an equityd to query instead of the local engine")
	timeout := fs.Duration("timeout", time.Minute, "request timeout when -remote is set")
	suppress := new(float64)
	set := make(map[string]bool)

	var exec func(eng backend) (any, func() (string, error), error)
	switch args[0] {
	case "evaluate":
		hole := fs.String("hole", "", "hole cards")
		exec = func(eng backend) (any, func() (string, error), error) {
			res, err := eng.Evaluate(ctx, *hole, *board)
			return res, func() (string, error) { return renderEvaluate(res) }, err
		}
	case "compare":
		hole1 := fs.String("hole1", "", "first hand")
		hole2 := fs.String("hole2", "", "second hand")
		exec = func(eng backend) (any, func() (string, error), error) {
			res, err := eng.Compare(ctx, *hole1, *hole2, *board)
			return res, func() (string, error) { return renderCompare(res) }, err
		}
	case "equity":
		var players stringList
		fs.Var(&players, "player", "hole cards of one player, repeatable")
		mode := fs.String("mode", string(equity.ModeAuto), "auto, exact or mc")
		iterations := fs.Int("iterations", equity.DefaultIterations, "Monte Carlo iterations")
		seed := fs.Int64("seed", 0, "Monte Carlo seed; omit for a random seed")
		exactMax := fs.Int("exact-max", equity.DefaultExactMaxCombos, "largest completion count auto mode enumerates")
		exec = func(eng backend) (any, func() (string, error), error) {
			opts := equity.Options{Mode: equity.Mode(*mode), Iterations: *iterations, ExactMaxCombos: *exactMax}
			if set["seed"] {
				opts.Seed = seed
			}
			res, err := eng.Equity(ctx, engine.EquityInput{Players: players, Board: *board, Dead: dead, Options: opts})
			return res, func() (string, error) { return renderEquity(res) }, err
		}
	case "outs":
		hero := fs.String("hero", "", "hero hole cards")
		villain := fs.String("villain", "", "villain hole cards")
		fs.Float64Var(suppress, "suppress-at", 0, "suppress outs once hero's win probability reaches this value")
		exec = func(eng backend) (any, func() (string, error), error) {
			res, err := eng.Outs(ctx, engine.OutsInput{Hero: *hero, Villain: *villain, Board: *board, Dead: dead})
			return res, func() (string, error) { return renderOuts(res) }, err
		}
	case "canonical":
		cards := fs.String("cards", "", "cards to canonicalize")
		known := fs.String("known", "", "cards whose suits stay fixed")
		exec = func(eng backend) (any, func() (string, error), error) {
			res, err := eng.Canonical(ctx, *cards, *known)
			return res, func() (string, error) { return renderCanonical(res) }, err
		}
	case "-h", "-help", "--help", "help":
		fmt.Fprintln(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stdout, "unknown command %q\n\n%s\n", args[0], usage)
		return 2
	}

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var eng backend
	if *remote != "" {
		if *suppress != 0 {
			logger.Warn("-suppress-at is ignored with -remote; the server policy applies")
		}
		eng = equityclient.New(*remote, *timeout)
	} else {
		local, err := engine.New(engine.Config{CacheSize: -1, Policy: outs.Policy{SuppressAtEquity: *suppress}})
		if err != nil {
			logger.Error("engine setup failed", "error", err)
			return 1
		}
		eng = local
	}
	result, render, err := exec(eng)
	if err != nil {
		logger.Error(args[0]+" failed", "error", err)
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			logger.Error("encode result failed", "error", err)
			return 1
		}
		return 0
	}
	out, err := render()
	if err != nil {
		logger.Error("render failed", "error", err)
		return 1
	}
	fmt.Fprint(stdout, out)
	return 0
}
