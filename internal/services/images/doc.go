// Package images defines the image metadata collaborator consumed by the
// archive pipeline, plus a filesystem-backed implementation used by the
// daemon and in tests.
package images
