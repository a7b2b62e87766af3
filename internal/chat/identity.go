package chat

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
)

// Palette is the fixed set of display colors handed out to new connections.
var Palette = [...]string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A",
	"#98D8C8", "#6C5CE7", "#A29BFE", "#FD79A8",
	"#FDCB6E", "#00B894", "#0984E3", "#E17055",
}

// Allocator issues user IDs and display colors. It is safe for concurrent
// use; the zero value is not usable, construct it with NewAllocator.
type Allocator struct {
	lastID atomic.Uint64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAllocator returns an Allocator whose first NextID is 1. A nil source
// selects a randomly seeded PCG generator.
func NewAllocator(src rand.Source) *Allocator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Allocator{rng: rand.New(src)}
}

// NextID returns the next user ID. IDs start at 1 and are never reused.
func (a *Allocator) NextID() uint64 {
	return a.lastID.Add(1)
}

// RandomColor returns one palette entry chosen uniformly at random.
func (a *Allocator) RandomColor() string {
	a.mu.Lock()
	i := a.rng.IntN(len(Palette))
	a.mu.Unlock()
	return Palette[i]
}
