package usecase

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
)

// Random is the uniform source used for draws and picks
type Random interface {
	// Float64 returns a value in [0,1)
	Float64() float64
	// IntN returns a value in [0,n)
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandom returns a goroutine-safe generator. seed 0 seeds from the clock.
func NewRandom(seed uint64) Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Draw reports whether a fresh uniform draw passes p
func Draw(r Random, p domain.Probability) bool {
	return p.Fires(r.Float64())
}

// Pick returns a uniformly chosen element; ok is false for an empty list
func Pick(r Random, list []string) (string, bool) {
	if len(list) == 0 {
		return "", false
	}
	return list[r.IntN(len(list))], true
}
