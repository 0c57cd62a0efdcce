package toolbridge

import "encoding/json"

// JSON-RPC method names spoken to the tool server.
const (
	MethodInitialize       = "initialize"
	MethodInitialized      = "notifications/initialized"
	MethodToolsList        = "tools/list"
	MethodToolsCall        = "tools/call"
	MethodToolsListChanged = "notifications/tools/list_changed"
)

// Client identity sent during the handshake.
const (
	defaultClientName    = "toolbridge"
	defaultClientVersion = "0.1.0"
)

// maxToolPages bounds tools/list pagination against a server that never
// stops returning cursors.
const maxToolPages = 100

// Implementation identifies a client or server.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Tool describes one tool exposed by the server. InputSchema is opaque.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// --- Initialize ---

type initializeParams struct {
	ClientInfo   Implementation `json:"clientInfo"`
	Capabilities struct{}       `json:"capabilities"`
}

type initializeResult struct {
	ServerInfo   *Implementation `json:"serverInfo"`
	Capabilities json.RawMessage `json:"capabilities,omitempty"`
}

// --- Tools ---

type listToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type listToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type callToolParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

type callToolResult struct {
	Content json.RawMessage `json:"content"`
}
