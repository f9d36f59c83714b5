// Package thumbnailer generates and caches small preview images for
// files, folders, videos, and archive entries. Generated thumbnails
// persist in the SQLite store keyed by content identity with a
// (size, mtime) validity token; failed sources are recorded with retry
// accounting so broken files do not burn CPU on every gallery render.
package thumbnailer
