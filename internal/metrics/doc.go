// Package metrics defines the Prometheus collectors for the archive access
// layer, the thumbnail pipeline and the persistent store.
package metrics
