// Package middleware provides HTTP middleware: W3C request logging,
// Prometheus request metrics, and gzip compression.
package middleware
