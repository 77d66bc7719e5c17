// Package middleware provides composable request middleware for mcp-wire
// servers.
//
// Middleware wrap the server's request handler Gin-style:
//
//	stack := middleware.Chain(
//	    middleware.Recover(),
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	)
//	handler := stack(finalHandler)
//
// The server facade assembles its stack from the server config: the
// request timeout wires Timeout, the metrics flag wires OTel, and the
// debug flag selects the logging verbosity.
package middleware
