// Package ring implements a weighted consistent hashing ring compatible with
// libketama. Each node is placed on a 32-bit circular keyspace at many points
// derived from MD5 digests, so that keys spread proportionally to node weight
// and membership changes move only the keys of the affected nodes.
package ring
