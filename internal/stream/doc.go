// Package stream owns the process-wide price feed.
//
// A Service wires a source factory to the connection supervisor, the batching
// buffer and the shared price store:
//
//	SourceFactory -> Supervisor -> Batcher -> PriceStore -> Subscriptions
//
// The feed runs while at least one Subscription is attached. The first Attach
// starts it and the Detach that brings the count back to zero stops it:
// the flush cadence first, then the supervisor (pending retry cancelled
// before the live source is closed). Shutdown stops it unconditionally.
//
// A Portfolio combines a Service with a holdings loader and recomputes the
// valuation summary on every store update.
package stream
