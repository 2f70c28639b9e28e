// Package shard provides in-memory per-node stores whose keys are placed by
// a consistent hashing ring. After a membership change the router moves
// only the keys whose owner changed, which makes the remapping cost of the
// ring observable.
package shard
