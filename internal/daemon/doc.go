// Package daemon wires the store, scheduler, worker pool, and HTTP API into
// the long-running darkroomd process and enforces single-instance execution.
package daemon
