// Package protocol defines the JSON-RPC 2.0 envelope and error codes used
// by mcp-wire.
//
// The transport layer treats messages as opaque bytes; this package is what
// the server facade uses to interpret them. It defines the core message
// types:
//
//	type Request struct {
//	    JSONRPC string          `json:"jsonrpc"`
//	    ID      json.RawMessage `json:"id,omitempty"`
//	    Method  string          `json:"method"`
//	    Params  json.RawMessage `json:"params,omitempty"`
//	}
//
//	type Response struct {
//	    JSONRPC string          `json:"jsonrpc"`
//	    ID      json.RawMessage `json:"id,omitempty"`
//	    Result  any             `json:"result,omitempty"`
//	    Error   *Error          `json:"error,omitempty"`
//	}
//
// Standard JSON-RPC 2.0 error codes are defined as constants and created
// through helper constructors:
//
//	err := protocol.NewMethodNotFound("unknown/method")
//	err := protocol.NewInvalidParams("missing required field: name")
package protocol
