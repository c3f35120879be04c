// Package engine provides the concurrency helpers behind aotctl's long-running
// commands.
//
// The implementation is split across files:
// - safegroup.go: errgroup with panic recovery and logging
package engine
