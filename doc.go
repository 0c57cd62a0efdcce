// Package toolbridge is a client for tool servers that speak JSON-RPC 2.0
// over a child process's stdin and stdout with Content-Length framing.
//
// A Client spawns the server lazily, performs the initialize handshake
// once, and then multiplexes concurrent requests over the pipe, matching
// responses by id:
//
//	c := toolbridge.New(toolbridge.WithCommand("repo-tools", "--stdio"))
//	defer c.Close()
//
//	name, err := c.DiscoverTool(ctx, "repo", "list")
//	if err != nil { ... }
//	content, err := c.CallTool(ctx, name, map[string]any{"limit": "10"})
//
// Arguments are normalized before they are sent: "true"/"false" become
// booleans and numeric strings become numbers, so values taken from query
// strings or config files reach the server typed.
//
// Every request carries a deadline (WithRequestTimeout) and honors context
// cancellation; either one fails only that request. If the server exits,
// later operations fail with ErrProcessExited and the Client is not
// restarted.
//
// The wire layers live in their own packages: frame (Content-Length codec),
// jsonrpc (correlation and the reader loop), process (child supervision)
// and jsonvalue (ordered JSON values and normalization).
package toolbridge
