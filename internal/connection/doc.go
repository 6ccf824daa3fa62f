// Package connection implements the Connection Supervisor.
//
// The supervisor:
//   - Owns exactly one live tick source at a time
//   - Reconnects failed sources with exponential backoff (1s doubling to 32s)
//   - Publishes connection status changes to the price store
//   - Forwards ticks from the current source to the batching buffer
//   - Drops events and ticks from sources that have been replaced
//
// Lifecycle decisions live in Machine, a pure state machine. Supervisor
// serializes every event through one goroutine and executes the actions the
// machine returns. Client is the WebSocket transport used by network sources.
package connection
