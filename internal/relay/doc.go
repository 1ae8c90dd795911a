// Package relay owns the connection surface of the bridge.
//
// Ownership boundary:
// - TCP listener and WebSocket transport adapters
// - per-connection session state machine
//   (connecting -> authenticating -> connected -> disconnected)
// - inbound line accumulation and command parsing
// - handshake negotiation and init verification
// - serialized frame writes and the bounded push queue
//
// Command semantics past the auth gate belong to the adapter
// subpackage; binding sessions to backend sessions belongs to the
// bridge package.
package relay
