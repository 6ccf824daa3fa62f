// Package batch implements the Batching Buffer.
//
// Ticks arrive from the live source at arbitrary rates. The Batcher queues
// them and, on a fixed cadence (200ms by default), drains the queue,
// collapses it to the last price per symbol, and publishes the result to
// the price store in one write. Consumers therefore see at most one update
// per window no matter how bursty the feed is.
package batch
