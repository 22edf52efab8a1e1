package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/4ier/logodeth/internal/imaging"
)

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

type memoryPrint struct {
	fp      imaging.Fingerprint
	hash    string
	addedAt time.Time
}

// MemoryStore is an in-process Store. Entries are encoded exactly as in Redis
// so both backends round-trip the same way.
type MemoryStore struct {
	mu      sync.Mutex
	items   map[string]memoryItem
	order   []string // insertion order for eviction
	prints  []memoryPrint
	ttl     time.Duration
	maxKeys int
	hits    int64
	misses  int64
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store holding at most maxKeys results.
func NewMemoryStore(ttl time.Duration, maxKeys int) *MemoryStore {
	return &MemoryStore{
		items:   make(map[string]memoryItem),
		ttl:     ttl,
		maxKeys: maxKeys,
		now:     time.Now,
	}
}

// Get fetches a cached entry and records a hit or miss.
func (s *MemoryStore) Get(ctx context.Context, hash string) (*Entry, error) {
	s.mu.Lock()
	item, ok := s.items[hash]
	if ok && !s.now().Before(item.expiresAt) {
		s.remove(hash)
		ok = false
	}
	if !ok {
		s.misses++
		s.mu.Unlock()
		return nil, ErrMiss
	}
	s.hits++
	s.mu.Unlock()
	return decodeEntry(item.data)
}

// Set stores an entry, evicting the oldest entries beyond maxKeys.
func (s *MemoryStore) Set(ctx context.Context, hash string, e *Entry) error {
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[hash]; !exists {
		s.order = append(s.order, hash)
	}
	s.items[hash] = memoryItem{data: data, expiresAt: s.now().Add(s.ttl)}

	for s.maxKeys > 0 && len(s.items) > s.maxKeys && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.items, oldest)
		s.dropPrints(oldest)
	}
	return nil
}

// Delete removes one entry.
func (s *MemoryStore) Delete(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[hash]
	s.remove(hash)
	return ok, nil
}

// remove drops hash from the map, the eviction order and the fingerprint
// index. Callers hold mu.
func (s *MemoryStore) remove(hash string) {
	delete(s.items, hash)
	s.order = slices.DeleteFunc(s.order, func(h string) bool { return h == hash })
	s.dropPrints(hash)
}

// dropPrints removes every fingerprint pointing at hash. Callers hold mu.
func (s *MemoryStore) dropPrints(hash string) {
	s.prints = slices.DeleteFunc(s.prints, func(p memoryPrint) bool { return p.hash == hash })
}

// Clear removes everything and resets the counters.
func (s *MemoryStore) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.items))
	s.items = make(map[string]memoryItem)
	s.order = nil
	s.prints = nil
	s.hits, s.misses = 0, 0
	return n, nil
}

// Stats reports live entries and counters.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var keys int64
	for _, item := range s.items {
		if now.Before(item.expiresAt) {
			keys++
		}
	}
	return Stats{
		Backend:    BackendMemory,
		Keys:       keys,
		Hits:       s.hits,
		Misses:     s.misses,
		HitRate:    hitRate(s.hits, s.misses),
		TTLSeconds: int64(s.ttl.Seconds()),
	}, nil
}

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Remember indexes a fingerprint, keeping at most maxKeys of the newest.
func (s *MemoryStore) Remember(ctx context.Context, fp imaging.Fingerprint, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prints = append(s.prints, memoryPrint{fp: fp, hash: hash, addedAt: s.now()})
	if s.maxKeys > 0 && len(s.prints) > s.maxKeys {
		s.prints = s.prints[len(s.prints)-s.maxKeys:]
	}
	return nil
}

// Similar returns the closest unexpired fingerprint under the threshold whose
// entry is still live.
func (s *MemoryStore) Similar(ctx context.Context, fp imaging.Fingerprint) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.ttl)
	best, bestDist := "", imaging.DuplicateThreshold
	for i := len(s.prints) - 1; i >= 0; i-- {
		p := s.prints[i]
		if p.addedAt.Before(cutoff) {
			continue
		}
		if item, ok := s.items[p.hash]; !ok || !now.Before(item.expiresAt) {
			continue
		}
		if d, err := fp.Distance(p.fp); err == nil && d < bestDist {
			best, bestDist = p.hash, d
		}
	}
	if best == "" {
		return "", ErrMiss
	}
	return best, nil
}
