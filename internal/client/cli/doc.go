// Package cli implements the cardkeeper command-line client with cobra.
//
// Every command opens the local SQLite cache, restores the saved tokens and
// works against the HTTP API. Read commands (ls, cat) use the cache only;
// mutations go to the server and the response is applied to the cache
// together with the piggybacked changes, so the cache stays caught up.
package cli
