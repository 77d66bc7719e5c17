// Package transport provides the server-side transport bindings for mcp-wire.
//
// A transport carries opaque messages between a protocol server and its
// peer. Every binding satisfies the same ServerTransport contract:
//
//   - Messages returns a subscription to the inbound message stream.
//   - Done and Err expose the one-shot terminal close signal.
//   - Send enqueues a message for the peer; sends after close are
//     silently dropped.
//   - Close is idempotent and fires the close signal exactly once.
//
// Bindings are selected through the closed Config variant set (Stdio, SSE,
// StreamableHTTP) and constructed by New. The InMemory transport pairs a
// server and client in the same process with no network stack; the
// WebSocket binding is constructed directly and sits outside the config
// set.
//
// Messages sent by one party arrive at the other in the order they were
// sent. No ordering is guaranteed across directions.
package transport
