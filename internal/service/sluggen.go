package service

import (
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

// Alphabet for slugs. Generated slugs keep the mixed case they are
// produced with; custom aliases are lowercased before they reach storage.
const slugChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// SlugLength is the fixed length of generated slugs (62^6 combinations).
const SlugLength = 6

const (
	cacheMaxSize       = 10000
	cacheSweepInterval = 60 * time.Second
)

// SlugGenerator produces short link candidates with no persistence
// dependency. It keeps an advisory cache of recently issued slugs so
// obviously-taken candidates can be skipped without a store query; the
// store remains the only authority on uniqueness.
//
// A background sweep clears the cache wholesale once it grows past
// cacheMaxSize. Callers that discard a generator must call Stop to
// release the sweep goroutine.
type SlugGenerator struct {
	mu     sync.Mutex
	recent map[string]struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// NewSlugGenerator creates a generator and starts its cache sweep.
func NewSlugGenerator() *SlugGenerator {
	g := &SlugGenerator{
		recent: make(map[string]struct{}),
		done:   make(chan struct{}),
	}
	go g.sweep(cacheSweepInterval)
	return g
}

// Stop cancels the background sweep. Safe to call more than once.
func (g *SlugGenerator) Stop() {
	g.stopOnce.Do(func() {
		close(g.done)
	})
}

func (g *SlugGenerator) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.sweepOnce()
		case <-g.done:
			return
		}
	}
}

// sweepOnce clears the whole cache when it exceeds the cap. Entries are
// never evicted individually: a forgotten slug only costs one extra
// store query later, so partial eviction isn't worth the bookkeeping.
func (g *SlugGenerator) sweepOnce() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.recent) > cacheMaxSize {
		g.recent = make(map[string]struct{})
	}
}

// AddToCache records a slug as recently issued. Best-effort only.
func (g *SlugGenerator) AddToCache(slug string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recent[slug] = struct{}{}
}

// InCache reports whether a slug was recently issued. A false result
// does not mean the slug is available.
func (g *SlugGenerator) InCache(slug string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.recent[slug]
	return ok
}

// GeneratePrimary derives a slug from a hash of the current time and a
// random value. The hash magnitude is peeled off as base-62 digits; when
// the accumulator runs out before all positions are filled it is
// re-seeded with fresh randomness so the slug always has SlugLength
// characters.
func (g *SlugGenerator) GeneratePrimary() string {
	seed := strconv.FormatInt(time.Now().UnixMilli(), 10) +
		strconv.FormatUint(rand.Uint64(), 10)

	h := fnv.New32a()
	h.Write([]byte(seed))
	num := int64(h.Sum32())

	buf := make([]byte, 0, SlugLength)
	for i := 0; i < SlugLength; i++ {
		buf = append(buf, slugChars[num%int64(len(slugChars))])
		num /= int64(len(slugChars))
		if num == 0 {
			num = rand.Int64N(int64(len(slugChars)) * int64(len(slugChars)) * int64(len(slugChars)))
		}
	}
	return string(buf)
}

// GenerateFallback picks every position independently at random. Used as
// the second attempt after a primary collision so a flawed primary seed
// cannot produce the same collision twice.
func (g *SlugGenerator) GenerateFallback() string {
	buf := make([]byte, SlugLength)
	for i := range buf {
		buf[i] = slugChars[rand.IntN(len(slugChars))]
	}
	return string(buf)
}
