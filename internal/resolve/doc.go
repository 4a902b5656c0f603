// Package resolve normalizes controller results into stand states.
//
// A result may be a state, a wrapper carrying one, or a transaction code. Codes
// are resolved through the controller's blocking wait accessor when it has one,
// otherwise by polling the get accessor, otherwise by polling status. Polls are
// bounded by the caller's timeout in wall-clock time.
package resolve
