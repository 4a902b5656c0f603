// Package remote is a capability handle over the gRPC stand service.
//
// Dial fetches the controller's method surface once; Invoke performs one
// unary call per method call. Async methods are started in a goroutine and
// surfaced as futures. Every response is appended to the response log,
// labelled with the operation carried by the call's context.
package remote
