// Package objstore abstracts blob access for the archive pipeline: reading
// source image bytes and publishing finished archives to durable storage.
package objstore
