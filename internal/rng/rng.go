// Package rng provides the injectable random source used by field generation
// and instance construction. Nothing in this module reads a process-wide
// generator; every consumer receives a Source.
package rng

import (
	"math"
	"math/rand/v2"
)

// Source is the minimal random interface consumed by the simulation.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). n must be > 0.
	IntN(n int) int
}

// PCG is a seedable Source backed by math/rand/v2's PCG generator.
type PCG struct {
	seed uint64
	r    *rand.Rand
}

// New returns a Source whose sequence is fully determined by seed.
func New(seed uint64) *PCG {
	return &PCG{
		seed: seed,
		r:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Seed returns the seed the source was created with.
func (p *PCG) Seed() uint64 { return p.seed }

// Float64 implements Source.
func (p *PCG) Float64() float64 { return p.r.Float64() }

// IntN implements Source.
func (p *PCG) IntN(n int) int { return p.r.IntN(n) }

// Uniform returns a value uniformly distributed in [lo, hi).
// If hi <= lo it returns lo.
func Uniform(src Source, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + src.Float64()*(hi-lo)
}

// Angle returns a uniformly distributed angle in [0, 2π).
func Angle(src Source) float64 {
	return src.Float64() * 2 * math.Pi
}

// Chance returns true with probability p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}
