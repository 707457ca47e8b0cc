// Package notifications delivers archive lifecycle events via pluggable
// notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The store's notification claim keeps delivery at-most-once; this
// package only formats and ships the message.
package notifications
