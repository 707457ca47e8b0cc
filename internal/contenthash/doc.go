// Package contenthash computes the deterministic fingerprint of a gallery's
// image set that drives archive cache-hit decisions.
package contenthash
