package domain

import (
	"errors"
	"fmt"
)

var (
	ErrParse                   = errors.New("malformed card")
	ErrDuplicateCard           = errors.New("duplicate card")
	ErrInvalidPlayerCount      = errors.New("invalid player count")
	ErrInvalidBoardLength      = errors.New("invalid board length")
	ErrInvalidOutsPrecondition = errors.New("outs require a four-card board and two players")
	ErrDeckExhausted           = errors.New("not enough cards left to complete the board")
)

type ParseError struct {
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse card %q: %s", e.Token, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

type DuplicateCardError struct {
	Card Card
}

func (e *DuplicateCardError) Error() string {
	return fmt.Sprintf("card %s is assigned more than once", e.Card)
}

func (e *DuplicateCardError) Unwrap() error { return ErrDuplicateCard }

type InvalidPlayerCountError struct {
	Got int
	Min int
}

func (e *InvalidPlayerCountError) Error() string {
	return fmt.Sprintf("need at least %d players, got %d", e.Min, e.Got)
}

func (e *InvalidPlayerCountError) Unwrap() error { return ErrInvalidPlayerCount }

type InvalidBoardLengthError struct {
	Got int
}

func (e *InvalidBoardLengthError) Error() string {
	return fmt.Sprintf("board must have 0, 3, 4 or 5 cards, got %d", e.Got)
}

func (e *InvalidBoardLengthError) Unwrap() error { return ErrInvalidBoardLength }

type InvalidOutsPreconditionError struct {
	Players  int
	BoardLen int
}

func (e *InvalidOutsPreconditionError) Error() string {
	return fmt.Sprintf("outs need 2 players and a 4-card board, got %d players and %d board cards", e.Players, e.BoardLen)
}

func (e *InvalidOutsPreconditionError) Unwrap() error { return ErrInvalidOutsPrecondition }

// ValidBoardLength reports whether n is a dealt street: preflop, flop, turn or river.
func ValidBoardLength(n int) bool {
	return n == 0 || n == 3 || n == 4 || n == 5
}
