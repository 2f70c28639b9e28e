package ring

import (
	"slices"
	"sort"
)

// Index is the sorted set of points on the ring. It is not safe for
// concurrent use; Ring serializes access to it.
type Index struct {
	points []Point
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{points: make([]Point, 0)}
}

// Insert adds points keeping the index sorted by hash.
// When two points share a hash the one inserted last owns it.
func (x *Index) Insert(points ...Point) {
	if len(points) == 0 {
		return
	}
	x.points = append(x.points, points...)

	// Stable sort keeps insertion order inside a run of equal hashes,
	// so the last element of each run is the most recent writer.
	sort.SliceStable(x.points, func(i, j int) bool {
		return x.points[i].Hash < x.points[j].Hash
	})

	out := x.points[:0]
	for i, p := range x.points {
		if i+1 < len(x.points) && x.points[i+1].Hash == p.Hash {
			continue
		}
		out = append(out, p)
	}
	clear(x.points[len(out):])
	x.points = out
}

// Remove deletes every point owned by nodeID and reports how many were removed.
func (x *Index) Remove(nodeID string) int {
	before := len(x.points)
	x.points = slices.DeleteFunc(x.points, func(p Point) bool {
		return p.NodeID == nodeID
	})
	return before - len(x.points)
}

// Search returns the position of the first point with a hash >= h,
// wrapping to 0 when h is past the last point.
func (x *Index) Search(h uint32) (int, error) {
	if len(x.points) == 0 {
		return 0, ErrEmptyRing
	}
	idx := sort.Search(len(x.points), func(i int) bool {
		return x.points[i].Hash >= h
	})
	if idx >= len(x.points) {
		idx = 0
	}
	return idx, nil
}

// Nearest returns the owner of the first point clockwise from h.
func (x *Index) Nearest(h uint32) (string, error) {
	idx, err := x.Search(h)
	if err != nil {
		return "", err
	}
	return x.points[idx].NodeID, nil
}

// Len returns the number of points.
func (x *Index) Len() int {
	return len(x.points)
}

// At returns the point at position i.
func (x *Index) At(i int) Point {
	return x.points[i]
}

// Owners counts points per node.
func (x *Index) Owners() map[string]int {
	owners := make(map[string]int)
	for _, p := range x.points {
		owners[p.NodeID]++
	}
	return owners
}

// Reset drops all points.
func (x *Index) Reset() {
	x.points = make([]Point, 0)
}
