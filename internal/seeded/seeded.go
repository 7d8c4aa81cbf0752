// Package seeded provides reproducible random streams keyed by entity.
//
// Every entity (an opportunity, a scorecard) gets its own stream derived from
// the literal "<seed>:<id>". Streams are never shared, so the draws made for
// one entity do not depend on which other entities were processed before it
// or on which goroutine processes it.
package seeded

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"strconv"
)

// Stream is a deterministic random source for a single entity.
// A Stream is not safe for concurrent use.
type Stream struct {
	r *rand.Rand
}

// New returns the stream for (seed, id).
func New(seed int64, id string) *Stream {
	sum := sha256.Sum256([]byte(strconv.FormatInt(seed, 10) + ":" + id))
	src := rand.NewPCG(binary.BigEndian.Uint64(sum[0:8]), binary.BigEndian.Uint64(sum[8:16]))
	return &Stream{r: rand.New(src)}
}

// IntRange returns a uniform integer in [lo, hi]. It panics if hi < lo.
func (s *Stream) IntRange(lo, hi int) int {
	return lo + s.r.IntN(hi-lo+1)
}

// Uniform returns a uniform float in [lo, hi).
func (s *Stream) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.r.Float64()
}

// Choice returns one element of items chosen uniformly. It panics on an
// empty slice; callers validate their inputs at configuration time.
func Choice[T any](s *Stream, items []T) T {
	return items[s.r.IntN(len(items))]
}

// Sample returns k distinct elements of items in draw order, without
// replacement. k is clamped to len(items). items is not modified.
func Sample[T any](s *Stream, items []T, k int) []T {
	if k > len(items) {
		k = len(items)
	}
	if k <= 0 {
		return nil
	}
	pool := make([]T, len(items))
	copy(pool, items)
	for i := 0; i < k; i++ {
		j := i + s.r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k:k]
}
