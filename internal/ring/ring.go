package ring

import (
	"cmp"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Node is a physical node and its relative capacity.
type Node struct {
	ID     string
	Weight int
}

// Ring implements weighted consistent hashing over an Index.
// All methods are safe for concurrent use.
type Ring struct {
	mu       sync.RWMutex
	replicas int
	index    *Index
	weights  map[string]int // nodeID -> weight
}

// NewRing creates an empty ring. replicas is the number of digests per unit
// of weight; values <= 0 select DefaultReplicas.
func NewRing(replicas int) *Ring {
	if replicas <= 0 {
		replicas = DefaultReplicas
	}
	return &Ring{
		replicas: replicas,
		index:    NewIndex(),
		weights:  make(map[string]int),
	}
}

// New creates a ring populated with nodes. Nodes are inserted in the given
// order, which decides ownership of colliding points.
func New(replicas int, nodes ...Node) (*Ring, error) {
	r := NewRing(replicas)
	if err := r.add(nodes); err != nil {
		return nil, err
	}
	return r, nil
}

// NewWeighted creates a ring from a node -> weight mapping.
func NewWeighted(nodes map[string]int) (*Ring, error) {
	return New(DefaultReplicas, sortedNodes(nodes)...)
}

// NewFromList creates a ring where every node has weight 1.
func NewFromList(ids []string) (*Ring, error) {
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, Node{ID: id, Weight: 1})
	}
	return New(DefaultReplicas, nodes...)
}

// NewFromNode creates a ring holding a single weight-1 node.
func NewFromNode(id string) (*Ring, error) {
	return New(DefaultReplicas, Node{ID: id, Weight: 1})
}

// AddNodes registers every node of the mapping. Either all of them are
// added or, on error, none is. Registered nodes are rejected; to change a
// weight remove the node first.
func (r *Ring) AddNodes(nodes map[string]int) error {
	return r.add(sortedNodes(nodes))
}

// AddNode registers a single node.
func (r *Ring) AddNode(id string, weight int) error {
	return r.add([]Node{{ID: id, Weight: weight}})
}

func (r *Ring) add(nodes []Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	points, err := r.preparePoints(nodes, r.weights)
	if err != nil {
		return err
	}
	r.index.Insert(points...)
	for _, n := range nodes {
		r.weights[n.ID] = n.Weight
	}
	return nil
}

// preparePoints validates the batch against existing and generates all of
// its points without touching the index.
func (r *Ring) preparePoints(nodes []Node, existing map[string]int) ([]Point, error) {
	seen := make(map[string]struct{}, len(nodes))
	total := 0
	for _, n := range nodes {
		if err := validateNode(n.ID, n.Weight, r.replicas); err != nil {
			return nil, err
		}
		if _, dup := seen[n.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		if _, exists := existing[n.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrNodeAlreadyExists, n.ID)
		}
		seen[n.ID] = struct{}{}
		total += n.Weight * r.replicas * pointsPerDigest
	}

	points := make([]Point, 0, total)
	for _, n := range nodes {
		np, err := GeneratePoints(n.ID, n.Weight, r.replicas)
		if err != nil {
			return nil, err
		}
		points = append(points, np...)
	}
	return points, nil
}

// RemoveNodes drops every point of the given nodes. Unknown ids are ignored.
func (r *Ring) RemoveNodes(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if _, exists := r.weights[id]; !exists {
			continue
		}
		r.index.Remove(id)
		delete(r.weights, id)
	}
}

// SetNodes replaces the membership of the ring in one step.
func (r *Ring) SetNodes(nodes ...Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	points, err := r.preparePoints(nodes, nil)
	if err != nil {
		return err
	}
	index := NewIndex()
	index.Insert(points...)
	weights := make(map[string]int, len(nodes))
	for _, n := range nodes {
		weights[n.ID] = n.Weight
	}
	r.index = index
	r.weights = weights
	return nil
}

// GetNode returns the node responsible for key.
func (r *Ring) GetNode(key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.index.Nearest(HashKey(key))
}

// GetNodePos returns the index of the point responsible for key.
func (r *Ring) GetNodePos(key string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.index.Search(HashKey(key))
}

// PreferenceList returns up to k distinct nodes for key, starting with the
// responsible node and walking the ring clockwise.
func (r *Ring) PreferenceList(key string, k int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, err := r.index.Search(HashKey(key))
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return []string{}, nil
	}

	n := r.index.Len()
	seen := make(map[string]bool)
	result := make([]string, 0, min(k, len(r.weights)))
	for i := 0; i < n && len(result) < k; i++ {
		nodeID := r.index.At((idx + i) % n).NodeID
		if !seen[nodeID] {
			seen[nodeID] = true
			result = append(result, nodeID)
		}
	}
	return result, nil
}

// Nodes returns the registered node ids in natural order, so that
// "host:9" sorts before "host:10".
func (r *Ring) Nodes() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.weights))
	for id := range r.weights {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	SortIDs(ids)
	return ids
}

// SortIDs sorts node ids in natural order.
func SortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return naturalLess(ids[i], ids[j])
	})
}

// Weights returns a copy of the node -> weight mapping.
func (r *Ring) Weights() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	weights := make(map[string]int, len(r.weights))
	for id, w := range r.weights {
		weights[id] = w
	}
	return weights
}

// Weight returns the weight of a registered node.
func (r *Ring) Weight(id string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.weights[id]
	return w, ok
}

// NodeCount returns the number of registered nodes.
func (r *Ring) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.weights)
}

// Len returns the number of points on the ring.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.Len()
}

// IsEmpty reports whether no node is registered.
func (r *Ring) IsEmpty() bool {
	return r.NodeCount() == 0
}

// Replicas returns the number of digests per unit of weight.
func (r *Ring) Replicas() int {
	return r.replicas
}

// PointCounts returns the number of points each node owns.
func (r *Ring) PointCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.Owners()
}

// Shares returns the fraction of the keyspace owned by each node.
// A point owns the arc between its predecessor (exclusive) and itself.
func (r *Ring) Shares() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.index.Len()
	shares := make(map[string]float64, len(r.weights))
	if n == 0 {
		return shares
	}

	const space = float64(1 << 32)
	prev := uint64(r.index.At(n-1).Hash)
	for i := 0; i < n; i++ {
		p := r.index.At(i)
		cur := uint64(p.Hash)
		var arc uint64
		if i == 0 {
			arc = (1<<32 - prev) + cur
		} else {
			arc = cur - prev
		}
		shares[p.NodeID] += float64(arc) / space
		prev = cur
	}
	return shares
}

func sortedNodes(nodes map[string]int) []Node {
	list := make([]Node, 0, len(nodes))
	for id, w := range nodes {
		list = append(list, Node{ID: id, Weight: w})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

var nonWord = regexp.MustCompile(`\W+`)

// naturalLess compares ids piecewise. Numeric pieces sort before other
// pieces and compare by value; other pieces compare lexically.
func naturalLess(a, b string) bool {
	pa, pb := nonWord.Split(a, -1), nonWord.Split(b, -1)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if c := comparePiece(pa[i], pb[i]); c != 0 {
			return c < 0
		}
	}
	if len(pa) != len(pb) {
		return len(pa) < len(pb)
	}
	return a < b
}

func comparePiece(a, b string) int {
	da, db := isDigits(a), isDigits(b)
	switch {
	case da && db:
		a, b = strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			return cmp.Compare(len(a), len(b))
		}
		return strings.Compare(a, b)
	case da:
		return -1
	case db:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
