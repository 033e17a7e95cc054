package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
)

// newRNG returns the random source for one resolution step. The session
// seed is mixed with the seq (or tick) that triggered the step, so every
// roll is a pure function of the settlement log.
func newRNG(seed, salt int64) *rand.Rand {
	mixed := uint64(seed) ^ (uint64(salt) * 0x9E3779B97F4A7C15)
	mixed ^= mixed >> 31
	return rand.New(rand.NewSource(int64(mixed)))
}

// rollDie rolls a single die with the provided number of sides.
func rollDie(rng *rand.Rand, sides int) int {
	return rng.Intn(sides) + 1
}

// rollRange returns a value in [lo, hi].
func rollRange(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

// NewSeed draws a session seed from the OS. It is recorded in the create
// intent, so replay never calls it.
func NewSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic("engine: reading random seed: " + err.Error())
	}
	seed := int64(binary.LittleEndian.Uint64(b[:]) &^ (1 << 63))
	if seed == 0 {
		seed = 1
	}
	return seed
}
