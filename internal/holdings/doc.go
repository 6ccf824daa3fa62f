// Package holdings loads the static portfolio that live prices are valued
// against.
//
// A Provider fetches holdings from one place: an in-memory list, a YAML or
// JSON file, an HTTP endpoint, or a PostgreSQL table. The Loader wraps a
// provider with the activation policy: fetch once, retry exactly once after
// a fixed delay, then give up and keep the error for display until the
// caller asks for a reload.
package holdings
