// Package orchestrator composes the capability probe, the transaction
// resolver and the confirmation watcher into per-command dispatch.
//
// A direct command trusts the controller's answer. A confirmed command sends
// the no-wait form of the actuation with a watcher wait registered just
// before the send, then lets the event stream decide:
//
//	send     watcher                    result
//	success  Ok                         success, confirmed
//	success  Error or timeout           the send result
//	failure  Ok                         success, send error suppressed
//	failure  Error or timeout           the send failure
//	any      unavailable                the send result or error
//
// Commands never retry and never run concurrently within one Orchestrator.
package orchestrator
