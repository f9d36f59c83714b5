// Package database implements the persistent thumbnail cache store on
// SQLite: thumbnail blobs keyed by content identity with (size, date)
// validity tokens, failure records with retry accounting, and sidecar
// metadata.
package database
