// Package stand implements the gRPC transport of the stand controller.
//
// The service has no generated stubs: each controller method is a unary
// method of autostand.v1.Stand taking a google.protobuf.ListValue of
// positional arguments and returning a google.protobuf.Value. A Describe
// method lists the method surface so clients can probe it at runtime.
// Vendor failures travel as status details (google.rpc.ErrorInfo).
package stand
