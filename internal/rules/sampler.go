package rules

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/imaddar/poker-arena/services/equity/internal/domain"
)

// Sampler draws cards without replacement for Monte Carlo runs.
type Sampler interface {
	// Draw moves k uniformly chosen cards to the front of deck and returns them.
	// The deck is permuted in place; callers own it.
	Draw(deck []domain.Card, k int) []domain.Card
}

type seededSampler struct {
	rng *rand.Rand
}

// NewSeededSampler returns a sampler with its own generator. Two samplers built from the
// same seed produce the same sequence of draws.
func NewSeededSampler(seed int64) Sampler {
	return seededSampler{rng: rand.New(rand.NewSource(seed))}
}

func (s seededSampler) Draw(deck []domain.Card, k int) []domain.Card {
	if k > len(deck) {
		k = len(deck)
	}
	for i := 0; i < k; i++ {
		j := i + s.rng.Intn(len(deck)-i)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck[:k]
}

// NewSeed reads a fresh seed from crypto/rand for callers that did not supply one.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
