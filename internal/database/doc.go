// Package database provides connection pool management for PostgreSQL.
//
// The only relational data pricestream reads is the holdings table, loaded
// once per portfolio activation by the postgres holdings provider.
package database
