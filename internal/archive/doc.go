// Package archive provides multi-format archive access with layered
// caching.
//
// Three cache layers sit in front of the readers: a TTL-bounded index
// cache of sorted entry listings, a bounded cache of open zip handles,
// and a byte-budget-bounded cache of extracted payloads. Extraction
// runs an ordered strategy chain: a generic all-format backend first,
// then the format-specific reader for the archive's format.
package archive
