// Command darkroom is the operator CLI: request archives, poll jobs and
// archives over the daemon API, and maintain the queue directly against the
// store when the daemon is down.
package main
