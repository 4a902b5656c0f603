// Package server runs a simulated stand controller over gRPC.
//
// The simulator exposes one of three method surfaces (v1, v2, v3) that match
// the conventions successive controller generations used, moves the stand
// with a fixed delay and appends a webhook line per finished actuation to an
// events file that the client-side confirmation watcher can tail.
package server
