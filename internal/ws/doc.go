// Package ws provides the WebSocket substrate the relay runs on.
//
// The package implements:
//   - Hub: one namespace of connections, addressable by connection id and by named group
//   - HubManager: the set of namespaces served by the process
//   - Handler: upgrades HTTP requests and runs the read/write pumps
//   - Envelope: the {"event", "data"} frame exchanged with browsers
//
// Key features:
//   - Connection ids are assigned on upgrade and are unique for the process lifetime
//   - Each connection's inbound events are dispatched sequentially, in arrival order
//   - Targeted sends, group fan-out and forced termination of a single connection
//   - Origin allowlist shared with the HTTP CORS layer
package ws
