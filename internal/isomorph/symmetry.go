package isomorph

import (
	"math/bits"
	"strings"

	"github.com/imaddar/poker-arena/services/equity/internal/domain"
)

const suitBits = 0x1FFF

// Perm maps each suit index (domain.Suits order) to its image.
type Perm [4]uint8

var allPerms = permutations()

func permutations() []Perm {
	out := make([]Perm, 0, 24)
	var p Perm
	var used [4]bool
	var walk func(depth int)
	walk = func(depth int) {
		if depth == 4 {
			out = append(out, p)
			return
		}
		for s := uint8(0); s < 4; s++ {
			if used[s] {
				continue
			}
			used[s] = true
			p[depth] = s
			walk(depth + 1)
			used[s] = false
		}
	}
	walk(0)
	return out
}

// Apply relabels every card in a 52-bit card set.
func (p Perm) Apply(mask uint64) uint64 {
	var out uint64
	for s := 0; s < 4; s++ {
		out |= ((mask >> (13 * uint(s))) & suitBits) << (13 * uint(p[s]))
	}
	return out
}

func (p Perm) ApplyCard(c domain.Card) domain.Card {
	return domain.Card{Rank: c.Rank, Suit: domain.Suits[p[c.Suit.Index()]]}
}

// Group is a set of suit permutations closed under composition.
type Group struct {
	perms []Perm
}

// SymmetryGroup returns every suit permutation that maps each group onto itself as a set.
// Completions related by such a permutation produce identical showdowns for every player.
func SymmetryGroup(groups ...[]domain.Card) Group {
	masks := make([]uint64, len(groups))
	for i, g := range groups {
		masks[i] = domain.Mask(g)
	}

	var out []Perm
	for _, p := range allPerms {
		fixes := true
		for _, m := range masks {
			if p.Apply(m) != m {
				fixes = false
				break
			}
		}
		if fixes {
			out = append(out, p)
		}
	}
	return Group{perms: out}
}

// Trivial is the group holding only the identity; it disables reduction.
func Trivial() Group {
	return Group{perms: []Perm{{0, 1, 2, 3}}}
}

func (g Group) Size() int {
	return len(g.perms)
}

// Canonical returns the smallest image of mask under the group and the orbit size.
func (g Group) Canonical(mask uint64) (uint64, int) {
	rep := mask
	stabilizer := 0
	for _, p := range g.perms {
		image := p.Apply(mask)
		if image < rep {
			rep = image
		}
		if image == mask {
			stabilizer++
		}
	}
	return rep, len(g.perms) / stabilizer
}

// Representative reports whether mask is the smallest member of its orbit, and if so the
// orbit size. Non-representatives return early.
func (g Group) Representative(mask uint64) (bool, int) {
	stabilizer := 0
	for _, p := range g.perms {
		image := p.Apply(mask)
		if image < mask {
			return false, 0
		}
		if image == mask {
			stabilizer++
		}
	}
	return true, len(g.perms) / stabilizer
}

// Key renders the orbit representative of cards as a card string.
func (g Group) Key(cards []domain.Card) string {
	rep, _ := g.Canonical(domain.Mask(cards))
	return renderMask(rep)
}

// RelabelKey renders groups under whichever suit permutation gives the smallest rendering.
// Inputs that differ only by a relabeling of suits share a key. Group order is kept.
func RelabelKey(groups ...[]domain.Card) string {
	masks := make([]uint64, len(groups))
	for i, g := range groups {
		masks[i] = domain.Mask(g)
	}

	best := ""
	parts := make([]string, len(groups))
	for i, p := range allPerms {
		for j, m := range masks {
			parts[j] = renderMask(p.Apply(m))
		}
		key := strings.Join(parts, "|")
		if i == 0 || key < best {
			best = key
		}
	}
	return best
}

func renderMask(mask uint64) string {
	out := make([]domain.Card, 0, bits.OnesCount64(mask))
	for mask != 0 {
		i := bits.TrailingZeros64(mask)
		out = append(out, domain.CardFromIndex(i))
		mask &= mask - 1
	}
	return domain.CardsString(out)
}
