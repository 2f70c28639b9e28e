// Package server exposes a ring over gRPC so that processes without an
// embedded ring can resolve keys to nodes and change membership. Messages
// are protobuf well-known types, so no generated code is required.
package server
