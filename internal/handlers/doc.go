// Package handlers implements the HTTP API: archive listing and
// extraction, thumbnail generation and cache management, sidecar
// metadata, and health/version endpoints.
package handlers
