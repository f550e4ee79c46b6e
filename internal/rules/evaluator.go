package rules

import (
	"github.com/imaddar/poker-arena/services/equity/internal/domain"
)

type HandCategory uint8

const (
	HandCategoryHighCard HandCategory = iota
	HandCategoryOnePair
	HandCategoryTwoPair
	HandCategoryThreeOfAKind
	HandCategoryStraight
	HandCategoryFlush
	HandCategoryFullHouse
	HandCategoryFourOfAKind
	HandCategoryStraightFlush
	HandCategoryRoyalFlush
)

var categoryNames = [...]string{
	"high_card",
	"one_pair",
	"two_pair",
	"three_of_a_kind",
	"straight",
	"flush",
	"full_house",
	"four_of_a_kind",
	"straight_flush",
	"royal_flush",
}

func (c HandCategory) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// tiebreakLen is fixed per category, which is what lets Score pack tiebreaks without a length.
var tiebreakLen = [...]int{5, 4, 3, 3, 1, 5, 2, 2, 1, 1}

type HandRank struct {
	Category HandCategory
	Tiebreak []uint8
}

// Score packs a HandRank into one integer: category in bits 20..23, then up to five 4-bit
// tiebreak ranks most-significant first. Score order equals CompareHandRank order.
type Score uint32

func (s Score) Category() HandCategory {
	return HandCategory(s >> 20)
}

func (s Score) HandRank() HandRank {
	category := s.Category()
	if int(category) >= len(tiebreakLen) {
		return HandRank{}
	}
	n := tiebreakLen[category]
	tiebreak := make([]uint8, n)
	for i := 0; i < n; i++ {
		tiebreak[i] = uint8(s>>(16-4*uint(i))) & 0xF
	}
	return HandRank{Category: category, Tiebreak: tiebreak}
}

func makeScore(category HandCategory, tiebreak ...uint8) Score {
	s := Score(category) << 20
	for i, r := range tiebreak {
		s |= Score(r) << (16 - 4*uint(i))
	}
	return s
}

// Evaluate returns the best five-card rank among 5, 6 or 7 distinct cards.
// Fewer than five cards yield the zero HandRank.
func Evaluate(cards []domain.Card) HandRank {
	if len(cards) < 5 {
		return HandRank{}
	}
	return EvaluateScore(cards).HandRank()
}

func EvaluateBestHand(hole []domain.Card, board []domain.Card) HandRank {
	all := make([]domain.Card, 0, len(hole)+len(board))
	all = append(append(all, hole...), board...)
	return Evaluate(all)
}

// EvaluateScore searches every five-card subset and keeps the maximum.
// Input must hold 5..7 distinct valid cards; duplicates are not detected here.
func EvaluateScore(cards []domain.Card) Score {
	n := len(cards)
	if n < 5 || n > 7 {
		return 0
	}

	var five [5]domain.Card
	var best Score
	for _, c := range subsets[n] {
		five[0], five[1], five[2], five[3], five[4] = cards[c[0]], cards[c[1]], cards[c[2]], cards[c[3]], cards[c[4]]
		if s := evaluateFiveCards(&five); s > best {
			best = s
		}
	}
	return best
}

func CompareHandRank(a HandRank, b HandRank) int {
	if a.Category > b.Category {
		return 1
	}
	if a.Category < b.Category {
		return -1
	}

	n := len(a.Tiebreak)
	if len(b.Tiebreak) < n {
		n = len(b.Tiebreak)
	}
	for i := 0; i < n; i++ {
		if a.Tiebreak[i] > b.Tiebreak[i] {
			return 1
		}
		if a.Tiebreak[i] < b.Tiebreak[i] {
			return -1
		}
	}
	if len(a.Tiebreak) > len(b.Tiebreak) {
		return 1
	}
	if len(a.Tiebreak) < len(b.Tiebreak) {
		return -1
	}
	return 0
}

func evaluateFiveCards(cards *[5]domain.Card) Score {
	var ranks [5]uint8
	var counts [15]uint8
	isFlush := true
	for i, card := range cards {
		r := uint8(card.Rank)
		ranks[i] = r
		counts[r]++
		if card.Suit != cards[0].Suit {
			isFlush = false
		}
	}
	sortDescending(&ranks)

	groups, n := rankGroups(&ranks, &counts)
	straightHigh, isStraight := straightHighRank(&ranks, n)

	if isFlush && isStraight {
		if straightHigh == uint8(domain.RankAce) {
			return makeScore(HandCategoryRoyalFlush, straightHigh)
		}
		return makeScore(HandCategoryStraightFlush, straightHigh)
	}
	if groups[0].count == 4 {
		return makeScore(HandCategoryFourOfAKind, groups[0].rank, groups[1].rank)
	}
	if groups[0].count == 3 && groups[1].count == 2 {
		return makeScore(HandCategoryFullHouse, groups[0].rank, groups[1].rank)
	}
	if isFlush {
		return makeScore(HandCategoryFlush, ranks[:]...)
	}
	if isStraight {
		return makeScore(HandCategoryStraight, straightHigh)
	}
	if groups[0].count == 3 {
		return makeScore(HandCategoryThreeOfAKind, groups[0].rank, groups[1].rank, groups[2].rank)
	}
	if groups[0].count == 2 && groups[1].count == 2 {
		// rankGroups orders equal counts by rank, so groups[0] is the higher pair.
		return makeScore(HandCategoryTwoPair, groups[0].rank, groups[1].rank, groups[2].rank)
	}
	if groups[0].count == 2 {
		return makeScore(HandCategoryOnePair, groups[0].rank, groups[1].rank, groups[2].rank, groups[3].rank)
	}
	return makeScore(HandCategoryHighCard, ranks[:]...)
}

type rankGroup struct {
	rank  uint8
	count uint8
}

// rankGroups collapses descending ranks into groups ordered by count then rank, both descending.
func rankGroups(ranks *[5]uint8, counts *[15]uint8) ([5]rankGroup, int) {
	var groups [5]rankGroup
	n := 0
	for i, r := range ranks {
		if i > 0 && ranks[i-1] == r {
			continue
		}
		g := rankGroup{rank: r, count: counts[r]}
		j := n
		for j > 0 && groups[j-1].count < g.count {
			groups[j] = groups[j-1]
			j--
		}
		groups[j] = g
		n++
	}
	return groups, n
}

func straightHighRank(ranks *[5]uint8, unique int) (uint8, bool) {
	if unique != 5 {
		return 0, false
	}

	// Wheel straight: A-2-3-4-5.
	if ranks[0] == 14 && ranks[1] == 5 && ranks[4] == 2 {
		return 5, true
	}
	if ranks[0]-ranks[4] == 4 {
		return ranks[0], true
	}
	return 0, false
}

func sortDescending(ranks *[5]uint8) {
	for i := 1; i < len(ranks); i++ {
		for j := i; j > 0 && ranks[j] > ranks[j-1]; j-- {
			ranks[j], ranks[j-1] = ranks[j-1], ranks[j]
		}
	}
}

var subsets = [8][][]int{
	5: combinations(5, 5),
	6: combinations(6, 5),
	7: combinations(7, 5),
}

func combinations(n int, choose int) [][]int {
	out := make([][]int, 0)
	combo := make([]int, choose)
	var walk func(start int, depth int)
	walk = func(start int, depth int) {
		if depth == choose {
			copied := append([]int(nil), combo...)
			out = append(out, copied)
			return
		}
		for i := start; i <= n-(choose-depth); i++ {
			combo[depth] = i
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
	return out
}
