// Package cache persists resolved synced lyrics keyed by a normalized
// "title artist" query. Entries are never updated in place and never expire.
package cache

import (
	"strings"

	"github.com/samber/mo"
)

// Store is a lyrics cache. Get is synchronous; Put returns immediately and
// writes in the background, dropping (and logging) any failure.
type Store interface {
	Get(key string) mo.Option[string]
	Put(key, text string)
	// Flush blocks until every Put issued before it has been attempted.
	Flush()
	Close() error
}

var illegalChars = strings.NewReplacer(
	" ", "_",
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	"\x00", "_",
)

// Key builds the cache key for a track. Writers and readers must both go
// through this function.
func Key(title, artist string) string {
	query := strings.TrimSpace(title + " " + artist)
	return illegalChars.Replace(query)
}
