package ring

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// DefaultReplicas is the number of digests computed per unit of weight.
// Every digest yields four points, so a weight-1 node owns 40 points.
const DefaultReplicas = 10

// MaxNodePoints caps the points a single node may own. Larger weights are
// rejected with ErrInvalidWeight.
const MaxNodePoints = 1 << 22

// pointsPerDigest is the number of 32-bit points cut from one 128-bit digest.
const pointsPerDigest = md5.Size / 4

// Point is a single position of a node on the ring.
type Point struct {
	Hash   uint32
	NodeID string
}

// GeneratePoints returns the points of nodeID for the given weight.
// The result is a pure function of its arguments.
func GeneratePoints(nodeID string, weight, replicas int) ([]Point, error) {
	if replicas <= 0 {
		replicas = DefaultReplicas
	}
	if err := validateNode(nodeID, weight, replicas); err != nil {
		return nil, err
	}

	digests := replicas * weight
	points := make([]Point, 0, digests*pointsPerDigest)
	buf := make([]byte, 0, len(nodeID)+12)
	for j := 0; j < digests; j++ {
		buf = append(buf[:0], nodeID...)
		buf = append(buf, '-')
		buf = strconv.AppendInt(buf, int64(j), 10)
		digest := md5.Sum(buf)
		for i := 0; i < pointsPerDigest; i++ {
			points = append(points, Point{
				Hash:   binary.LittleEndian.Uint32(digest[i*4:]),
				NodeID: nodeID,
			})
		}
	}
	return points, nil
}

// HashKey maps a lookup key onto the ring keyspace.
func HashKey(key string) uint32 {
	digest := md5.Sum([]byte(key))
	return binary.LittleEndian.Uint32(digest[:4])
}

// validateNode expects replicas > 0.
func validateNode(nodeID string, weight, replicas int) error {
	if strings.TrimSpace(nodeID) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidNode, nodeID)
	}
	if weight <= 0 {
		return fmt.Errorf("%w: node %s has weight %d", ErrInvalidWeight, nodeID, weight)
	}
	if limit := MaxNodePoints / (replicas * pointsPerDigest); weight > limit {
		return fmt.Errorf("%w: node %s has weight %d, limit is %d at %d replicas",
			ErrInvalidWeight, nodeID, weight, limit, replicas)
	}
	return nil
}
