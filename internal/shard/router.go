package shard

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ketama/internal/ring"
)

// ErrNotFound is returned when a key is not stored on its owner.
var ErrNotFound = errors.New("key not found")

// MoveStats describes the outcome of a rebalance.
type MoveStats struct {
	Scanned int
	Moved   int
	Expired int
}

// MovedFraction is Moved / Scanned, or 0 when nothing was scanned.
func (m MoveStats) MovedFraction() float64 {
	if m.Scanned == 0 {
		return 0
	}
	return float64(m.Moved) / float64(m.Scanned)
}

// Router places keys on per-node stores through a ring.
type Router struct {
	// mu excludes key operations while keys are being moved.
	mu       sync.RWMutex
	storesMu sync.Mutex
	ring     *ring.Ring
	stores   map[string]*InMemoryStore // nodeID -> store
	logger   zerolog.Logger
}

// NewRouter creates a router over r.
func NewRouter(r *ring.Ring, logger zerolog.Logger) *Router {
	return &Router{
		ring:   r,
		stores: make(map[string]*InMemoryStore),
		logger: logger.With().Str("layer", "router").Logger(),
	}
}

// Ring returns the ring used for placement.
func (rt *Router) Ring() *ring.Ring {
	return rt.ring
}

func (rt *Router) storeFor(nodeID string) *InMemoryStore {
	rt.storesMu.Lock()
	defer rt.storesMu.Unlock()

	s, ok := rt.stores[nodeID]
	if !ok {
		s = NewInMemoryStore(nodeID)
		rt.stores[nodeID] = s
	}
	return s
}

// lookupStore returns the store of nodeID without creating one.
func (rt *Router) lookupStore(nodeID string) (*InMemoryStore, bool) {
	rt.storesMu.Lock()
	defer rt.storesMu.Unlock()

	s, ok := rt.stores[nodeID]
	return s, ok
}

// Put stores value on the owner of key and returns that owner.
func (rt *Router) Put(key string, value []byte, ttl time.Duration) (string, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	nodeID, err := rt.ring.GetNode(key)
	if err != nil {
		return "", err
	}
	rt.storeFor(nodeID).Put(key, value, ttl)
	return nodeID, nil
}

// Get reads key from its owner.
func (rt *Router) Get(key string) ([]byte, string, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	nodeID, err := rt.ring.GetNode(key)
	if err != nil {
		return nil, "", err
	}
	s, ok := rt.lookupStore(nodeID)
	if !ok {
		return nil, nodeID, ErrNotFound
	}
	value, ok := s.Get(key)
	if !ok {
		return nil, nodeID, ErrNotFound
	}
	return value, nodeID, nil
}

// Delete removes key from its owner.
func (rt *Router) Delete(key string) (bool, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	nodeID, err := rt.ring.GetNode(key)
	if err != nil {
		return false, err
	}
	s, ok := rt.lookupStore(nodeID)
	if !ok {
		return false, nil
	}
	return s.Delete(key), nil
}

// AddNodes adds nodes to the ring and moves the keys they now own.
func (rt *Router) AddNodes(nodes map[string]int) (MoveStats, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.ring.AddNodes(nodes); err != nil {
		return MoveStats{}, err
	}
	return rt.rebalanceLocked()
}

// RemoveNodes removes nodes from the ring and moves their keys to the new
// owners. Once the ring is empty the keys stay where they are until a node
// is added again.
func (rt *Router) RemoveNodes(ids ...string) (MoveStats, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.ring.RemoveNodes(ids...)
	if rt.ring.IsEmpty() {
		rt.logger.Warn().Strs("nodes", ids).Msg("Ring is empty, keys stay in place")
		return MoveStats{}, nil
	}
	return rt.rebalanceLocked()
}

// Rebalance moves every key whose owner differs from the store holding it.
// Call it after changing the ring directly.
func (rt *Router) Rebalance() (MoveStats, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.rebalanceLocked()
}

func (rt *Router) rebalanceLocked() (MoveStats, error) {
	var stats MoveStats
	if rt.ring.IsEmpty() {
		return stats, ring.ErrEmptyRing
	}

	rt.storesMu.Lock()
	stores := make([]*InMemoryStore, 0, len(rt.stores))
	for _, s := range rt.stores {
		stores = append(stores, s)
	}
	rt.storesMu.Unlock()

	// Snapshot keys first so moved keys are not scanned twice.
	keys := make([][]string, len(stores))
	for i, src := range stores {
		stats.Expired += src.Purge()
		keys[i] = src.Keys()
	}

	for i, src := range stores {
		for _, key := range keys[i] {
			stats.Scanned++
			owner, err := rt.ring.GetNode(key)
			if err != nil {
				return stats, err
			}
			if owner == src.NodeID() {
				continue
			}
			if e, ok := src.take(key); ok {
				rt.storeFor(owner).putEntry(key, e)
				stats.Moved++
			}
		}
	}

	rt.dropOrphans()
	rt.logger.Info().
		Int("scanned", stats.Scanned).
		Int("moved", stats.Moved).
		Int("expired", stats.Expired).
		Float64("moved_fraction", stats.MovedFraction()).
		Msg("Rebalanced keys")
	return stats, nil
}

// dropOrphans forgets empty stores of nodes that left the ring.
func (rt *Router) dropOrphans() {
	rt.storesMu.Lock()
	defer rt.storesMu.Unlock()

	for id, s := range rt.stores {
		if _, ok := rt.ring.Weight(id); !ok && s.Len() == 0 {
			delete(rt.stores, id)
		}
	}
}

// Counts returns the number of live keys held per node, including nodes
// that left the ring but still hold keys.
func (rt *Router) Counts() map[string]int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	rt.storesMu.Lock()
	defer rt.storesMu.Unlock()

	counts := make(map[string]int, len(rt.stores))
	for id, s := range rt.stores {
		counts[id] = s.Len()
	}
	return counts
}

// Locate returns the node whose store currently holds key, if any.
func (rt *Router) Locate(key string) (string, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	rt.storesMu.Lock()
	ids := make([]string, 0, len(rt.stores))
	for id := range rt.stores {
		ids = append(ids, id)
	}
	rt.storesMu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		s, ok := rt.lookupStore(id)
		if !ok {
			continue
		}
		if _, ok := s.Get(key); ok {
			return id, true
		}
	}
	return "", false
}
