package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MinRank Rank = 2
	MaxRank Rank = 14

	RankTen   Rank = 10
	RankJack  Rank = 11
	RankQueen Rank = 12
	RankKing  Rank = 13
	RankAce   Rank = 14

	DeckSize  = 52
	HoleSize  = 2
	BoardSize = 5
)

type Suit string

const (
	SuitClubs    Suit = "c"
	SuitDiamonds Suit = "d"
	SuitHearts   Suit = "h"
	SuitSpades   Suit = "s"
)

// Suits lists the four suits in deck order. Suit.Index follows this order.
var Suits = [4]Suit{SuitClubs, SuitDiamonds, SuitHearts, SuitSpades}

func (s Suit) Index() int {
	switch s {
	case SuitClubs:
		return 0
	case SuitDiamonds:
		return 1
	case SuitHearts:
		return 2
	case SuitSpades:
		return 3
	}
	return -1
}

func (s Suit) Valid() bool {
	return s.Index() >= 0
}

type Rank uint8

func NewRank(value uint8) (Rank, error) {
	if value < uint8(MinRank) || value > uint8(MaxRank) {
		return 0, fmt.Errorf("rank must be in range 2..=14, got %d", value)
	}
	return Rank(value), nil
}

// Card is an immutable rank/suit pair. The zero Card is not a valid card.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// Index maps a valid card onto 0..51, suit-major in Suits order.
func (c Card) Index() int {
	return c.Suit.Index()*13 + int(c.Rank-MinRank)
}

// Bit is the card's position in a 52-bit card set.
func (c Card) Bit() uint64 {
	return 1 << uint(c.Index())
}

func CardFromIndex(i int) Card {
	return Card{Rank: MinRank + Rank(i%13), Suit: Suits[i/13]}
}

func (c Card) String() string {
	return strconv.Itoa(int(c.Rank)) + string(c.Suit)
}

// Hole is one player's two private cards.
type Hole [HoleSize]Card

func (h Hole) Cards() []Card {
	return []Card{h[0], h[1]}
}

func (h Hole) String() string {
	return HoleString(h)
}

// Board holds 0..5 community cards in deal order.
type Board []Card

func (b Board) String() string {
	return BoardString(b)
}

// ParseCard parses a "<rank><suit>" token such as "14h" or "2c". Ranks are decimal 2..14;
// the letters T, J, Q, K and A are accepted as aliases for 10..14.
func ParseCard(token string) (Card, error) {
	token = strings.TrimSpace(token)
	if len(token) < 2 || len(token) > 3 {
		return Card{}, &ParseError{Token: token, Reason: "expected <rank><suit>"}
	}

	suit := Suit(strings.ToLower(token[len(token)-1:]))
	if !suit.Valid() {
		return Card{}, &ParseError{Token: token, Reason: fmt.Sprintf("unknown suit %q", string(suit))}
	}

	rank, ok := parseRank(token[:len(token)-1])
	if !ok {
		return Card{}, &ParseError{Token: token, Reason: fmt.Sprintf("unknown rank %q", token[:len(token)-1])}
	}
	return NewCard(rank, suit), nil
}

func parseRank(raw string) (Rank, bool) {
	switch strings.ToUpper(raw) {
	case "T":
		return RankTen, true
	case "J":
		return RankJack, true
	case "Q":
		return RankQueen, true
	case "K":
		return RankKing, true
	case "A":
		return RankAce, true
	}
	value, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, false
	}
	rank, err := NewRank(uint8(value))
	if err != nil {
		return 0, false
	}
	return rank, true
}

// ParseCards splits on whitespace and parses every non-empty token.
func ParseCards(s string) ([]Card, error) {
	fields := strings.Fields(s)
	cards := make([]Card, 0, len(fields))
	for _, field := range fields {
		card, err := ParseCard(field)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func ParseHole(s string) (Hole, error) {
	cards, err := ParseCards(s)
	if err != nil {
		return Hole{}, err
	}
	if len(cards) != HoleSize {
		return Hole{}, &ParseError{Token: s, Reason: fmt.Sprintf("hole needs exactly 2 cards, got %d", len(cards))}
	}
	if cards[0] == cards[1] {
		return Hole{}, &DuplicateCardError{Card: cards[0]}
	}
	return Hole{cards[0], cards[1]}, nil
}

// ParseBoard parses up to five community cards. Street-length rules are enforced by the
// equity and outs calculators, not here.
func ParseBoard(s string) (Board, error) {
	cards, err := ParseCards(s)
	if err != nil {
		return nil, err
	}
	if len(cards) > BoardSize {
		return nil, &InvalidBoardLengthError{Got: len(cards)}
	}
	return Board(cards), nil
}

func CardsString(cards []Card) string {
	parts := make([]string, len(cards))
	for i, card := range cards {
		parts[i] = card.String()
	}
	return strings.Join(parts, " ")
}

func HoleString(h Hole) string {
	return CardsString(h[:])
}

func BoardString(b Board) string {
	return CardsString(b)
}
