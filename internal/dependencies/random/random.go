package random

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// Random provides random number generation that can be mocked for testing
type Random interface {
	// Intn returns a random int in [0, n)
	Intn(n int) int

	// Float64 returns a random float in [0.0, 1.0)
	Float64() float64

	// String generates a random string of the given length from the given alphabet
	String(length int, alphabet string) string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Intn returns a cryptographically random int in [0, n)
func (r *CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	result, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(result.Int64())
}

// Float64 returns a cryptographically random float in [0.0, 1.0)
func (r *CryptoRandom) Float64() float64 {
	return float64(r.Intn(1<<53)) / (1 << 53)
}

// String generates a random string of the given length from the given alphabet
func (r *CryptoRandom) String(length int, alphabet string) string {
	return randomString(r, length, alphabet)
}

const goldenRatio64 = 0x9e3779b97f4a7c15

// SeededRandom implements Random with a deterministic PCG stream.
// It is not safe for concurrent use; each session owns its own.
type SeededRandom struct {
	rng *mrand.Rand
}

// NewSeeded returns a SeededRandom whose sequence is fully determined by seed
func NewSeeded(seed int64) *SeededRandom {
	u := uint64(seed)
	return &SeededRandom{rng: mrand.New(mrand.NewPCG(mix(u), mix(u+goldenRatio64)))}
}

// NewEntropySeeded returns a SeededRandom seeded from crypto/rand
func NewEntropySeeded() *SeededRandom {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return NewSeeded(int64(binary.LittleEndian.Uint64(b[:])))
}

func (r *SeededRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return r.rng.IntN(n)
}

func (r *SeededRandom) Float64() float64 {
	return r.rng.Float64()
}

func (r *SeededRandom) String(length int, alphabet string) string {
	return randomString(r, length, alphabet)
}

// Source hands out a Random per session
type Source interface {
	Next() Random
}

// SeededSource derives one SeededRandom per call. With a fixed base seed every
// derived stream is reproducible; otherwise each is seeded from entropy.
type SeededSource struct {
	mu      sync.Mutex
	base    uint64
	fixed   bool
	counter uint64
}

// NewSource returns a Source; a zero seed means entropy seeding
func NewSource(seed int64) *SeededSource {
	return &SeededSource{base: uint64(seed), fixed: seed != 0}
}

// Next returns the next Random
func (s *SeededSource) Next() Random {
	if !s.fixed {
		return NewEntropySeeded()
	}
	s.mu.Lock()
	s.counter++
	seed := s.base + s.counter*goldenRatio64
	s.mu.Unlock()
	return NewSeeded(int64(seed))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

func randomString(r Random, length int, alphabet string) string {
	if length <= 0 || len(alphabet) == 0 {
		return ""
	}
	result := make([]byte, length)
	for i := range length {
		result[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(result)
}
