package isomorph

import (
	"sort"
	"strconv"
	"strings"

	"github.com/imaddar/poker-arena/services/equity/internal/domain"
)

const unknownSuitBase = 4

type CanonicalHand struct {
	SuitIndex map[domain.Suit]int `json:"suit_index"`
	Key       string              `json:"key"`
}

// UniqueSuits is the number of distinct suits the hand uses.
func (h CanonicalHand) UniqueSuits() int {
	return len(h.SuitIndex)
}

// Canonicalize walks the cards by ascending rank (suit order breaks ties within a rank) and
// numbers suits in first-seen order. {As,Ks,Qs} and {Ah,Kh,Qh} share a key.
func Canonicalize(cards []domain.Card) CanonicalHand {
	index := make(map[domain.Suit]int, 4)
	for _, card := range sortedByRank(cards) {
		if _, ok := index[card.Suit]; !ok {
			index[card.Suit] = len(index)
		}
	}
	return CanonicalHand{SuitIndex: index, Key: renderKey(cards, index)}
}

// CanonicalizeConstrained keeps the relationship between cards and suits already fixed by
// known cards. Suits present among known get indices 0..3 in the order they are first seen
// there; other suits get 4..7. A flush draw stays distinguishable from a rainbow.
func CanonicalizeConstrained(cards []domain.Card, known []domain.Card) CanonicalHand {
	knownIndex := make(map[domain.Suit]int, 4)
	for _, card := range sortedByRank(known) {
		if _, ok := knownIndex[card.Suit]; !ok {
			knownIndex[card.Suit] = len(knownIndex)
		}
	}

	index := make(map[domain.Suit]int, 4)
	unknown := 0
	for _, card := range sortedByRank(cards) {
		if _, ok := index[card.Suit]; ok {
			continue
		}
		if i, ok := knownIndex[card.Suit]; ok {
			index[card.Suit] = i
			continue
		}
		index[card.Suit] = unknownSuitBase + unknown
		unknown++
	}
	return CanonicalHand{SuitIndex: index, Key: renderKey(cards, index)}
}

// CountIsomorphicCombinations returns P(availableSuits, h.UniqueSuits()), the number of ways
// to assign distinct real suits to the hand's suit indices, never less than 1.
func CountIsomorphicCombinations(h CanonicalHand, availableSuits int) int {
	unique := h.UniqueSuits()
	if unique == 0 || unique > availableSuits {
		return 1
	}
	count := 1
	for i := 0; i < unique; i++ {
		count *= availableSuits - i
	}
	return count
}

// EstimateIsomorphicCount canonicalizes cards and bounds their suit multiplicity.
// The figure is an upper bound: suit assignments that collide with one another are counted
// separately.
func EstimateIsomorphicCount(cards []domain.Card, availableSuits int) int {
	return CountIsomorphicCombinations(Canonicalize(cards), availableSuits)
}

func sortedByRank(cards []domain.Card) []domain.Card {
	out := append([]domain.Card(nil), cards...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank == out[j].Rank {
			return out[i].Suit.Index() < out[j].Suit.Index()
		}
		return out[i].Rank < out[j].Rank
	})
	return out
}

type keyEntry struct {
	rank domain.Rank
	suit int
}

func renderKey(cards []domain.Card, index map[domain.Suit]int) string {
	entries := make([]keyEntry, 0, len(cards))
	for _, card := range cards {
		entries = append(entries, keyEntry{rank: card.Rank, suit: index[card.Suit]})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].rank == entries[j].rank {
			return entries[i].suit < entries[j].suit
		}
		return entries[i].rank > entries[j].rank
	})

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(int(e.rank)))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(e.suit))
	}
	return b.String()
}
