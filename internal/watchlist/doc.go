// Package watchlist persists the set of favorited symbols.
//
// The set is stored under a single key as an ordered JSON array of symbols.
// It is read once by Load and rewritten in full on every Toggle. Missing or
// unreadable data yields an empty watchlist.
package watchlist
