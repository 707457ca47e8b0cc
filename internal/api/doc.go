// Package api defines the JSON payloads spoken between the daemon's HTTP
// server and its clients, plus the client used by the CLI.
package api
