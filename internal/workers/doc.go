// Package workers sizes worker pools based on available CPUs and the
// NEOVIEW_WORKERS environment override.
package workers
