// Package store persists archives and their generation jobs in SQLite and
// implements the lease protocol workers use to claim work safely across
// processes.
package store
