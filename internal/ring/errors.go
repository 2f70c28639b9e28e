package ring

import "errors"

// Error definitions
var (
	ErrInvalidWeight     = errors.New("weight must be a positive integer")
	ErrInvalidNode       = errors.New("node id must be a non-empty string")
	ErrDuplicateNode     = errors.New("duplicate node id")
	ErrNodeAlreadyExists = errors.New("node already exists in ring")
	ErrEmptyRing         = errors.New("ring has no nodes")
)
