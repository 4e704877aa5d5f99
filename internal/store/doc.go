// Package store persists the set of unsubscribe targets that have already
// been handled, so repeated runs never send a second request to the same
// mailto: URI.
//
// The store is a single SQLite table created on first use:
//
//	unsubscribed(id INTEGER PRIMARY KEY AUTOINCREMENT, mailto_link TEXT UNIQUE)
//
// Records are append-only. There is no update or delete operation.
package store
