package domain

type Deck struct {
	Cards []Card `json:"cards"`
}

func Standard52Deck() Deck {
	cards := make([]Card, 0, DeckSize)
	for _, suit := range Suits {
		for rank := MinRank; rank <= MaxRank; rank++ {
			cards = append(cards, NewCard(rank, suit))
		}
	}
	return Deck{Cards: cards}
}

// CheckDistinct reports the first card that appears more than once across all groups.
func CheckDistinct(groups ...[]Card) error {
	var seen uint64
	for _, group := range groups {
		for _, card := range group {
			if card.Suit.Index() < 0 || card.Rank < MinRank || card.Rank > MaxRank {
				return &ParseError{Token: card.String(), Reason: "card out of range"}
			}
			bit := card.Bit()
			if seen&bit != 0 {
				return &DuplicateCardError{Card: card}
			}
			seen |= bit
		}
	}
	return nil
}

// Mask folds card groups into a 52-bit set.
func Mask(groups ...[]Card) uint64 {
	var mask uint64
	for _, group := range groups {
		for _, card := range group {
			mask |= card.Bit()
		}
	}
	return mask
}

// RemainingDeck returns the standard deck minus every card in used, in deck order.
func RemainingDeck(used ...[]Card) []Card {
	taken := Mask(used...)
	out := make([]Card, 0, DeckSize)
	for i := 0; i < DeckSize; i++ {
		if taken&(1<<uint(i)) != 0 {
			continue
		}
		out = append(out, CardFromIndex(i))
	}
	return out
}
