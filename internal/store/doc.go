// Package store holds the Shared Price Store: the latest price per symbol
// and the current connection status.
//
// Reads never block writers. Each write builds a new immutable state and
// swaps it in atomically; readers get whatever state was current when they
// asked. Writes are serialized, and in practice each field has a single
// writer: the batcher merges prices, the supervisor sets status.
package store
