// Package mediatypes classifies file extensions into the categories the
// viewer understands: images, videos, archives and EPUB books.
package mediatypes
