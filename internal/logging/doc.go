// Package logging wires log/slog into darkroom with a human-readable console
// handler, a JSON handler for machine consumption, and shared attribute
// helpers so components log with consistent field names.
package logging
