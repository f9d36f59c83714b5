// Package logging provides leveled logging for the neoview service.
// The level is read once from the LOG_LEVEL or DEBUG environment
// variables and applies process-wide.
package logging
