// Package source provides the tick producers driven by the connection
// supervisor.
//
// Three variants exist:
//
//   - Synthetic generates a random price for a random symbol on a fixed
//     interval. It opens immediately and never fails.
//   - Network reads JSON ticks of the form {"symbol":"AAPL","price":175.5}
//     from a WebSocket endpoint. Malformed messages are dropped and counted.
//   - Kafka consumes the same JSON ticks from a Kafka topic when the
//     endpoint is a kafka:// URL.
//
// Every instance is single-use. NewFactory returns a connection.SourceFactory
// that builds a fresh instance of the configured variant for each dial.
package source
