// Package auth signs and verifies the HS256 bearer tokens sent with every
// controller call.
//
// Tokens identify the calling actor (hostname and username). The client side
// attaches them through gRPC per-RPC credentials; the simulator verifies them
// with a unary server interceptor. An empty secret disables both sides.
package auth
