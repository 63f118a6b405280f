package sim

import (
	"hash/fnv"
	"math/rand"
)

// DeterministicSeedValue folds a root seed string and a subsystem label into
// a stable 64-bit seed. Identical seeds and labels always produce identical
// streams, which keeps server and predicting clients aligned.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewDeterministicRNG builds an isolated RNG stream for one subsystem.
func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}
