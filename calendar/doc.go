// Package calendar reads and mutates the per-category agendas held by the
// remote event store. Reads return typed errors; mutations return a
// MutationResult and never fail the caller.
package calendar
