// Package jsonrpc is a JSON-RPC 2.0 client for a single peer reached over a
// pair of byte streams carrying Content-Length frames.
//
// A Conn assigns request ids from an atomic counter, registers each request
// with its Correlator before the frame is written, and waits for the
// response, the request deadline or the caller's context, whichever comes
// first. One ReadLoop goroutine decodes inbound frames and hands responses
// to the Correlator; notifications go to registered handlers or are dropped.
package jsonrpc
