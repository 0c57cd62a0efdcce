//go:build ignore

// Command mock-mcp simulates a tool server for integration tests. It speaks
// Content-Length framed JSON-RPC 2.0 over stdin/stdout: initialize,
// notifications/initialized, tools/list, tools/call.
//
// Environment variables control failure modes:
//
//	MCP_MOCK_MODE=init-error: return JSON-RPC error to initialize
//	MCP_MOCK_MODE=init-silent: never answer initialize
//	MCP_MOCK_MODE=no-server-info: answer initialize without serverInfo
//	MCP_MOCK_MODE=exit-on-ready: exit once notifications/initialized arrives
//	MCP_MOCK_MODE=paged: split tools/list across two pages
//
// Tools:
//
//	echo: content is {"tool":..., "arguments":...}
//	list_repositories: content is {"repositories":[...], "arguments":...}
//	slow: answers after 2s
//	fail: JSON-RPC error -32000 with data
//	handshake: reports the clientInfo and whether initialized arrived
//	env: reports $MOCK_VAR and the working directory
//	mutate: adds tool "late_tool" and sends tools/list_changed
//	garbage: writes a malformed frame, then answers normally
//	crash: exits with status 3 without answering
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

var (
	mode = os.Getenv("MCP_MOCK_MODE")

	writeMu sync.Mutex
	out     = bufio.NewWriter(os.Stdout)

	stateMu     sync.Mutex
	initialized bool
	clientInfo  json.RawMessage
	tools       = []tool{
		{Name: "echo", Description: "Echo arguments back"},
		{Name: "list_repositories", Description: "List repositories"},
		{Name: "slow"},
		{Name: "fail"},
		{Name: "handshake"},
		{Name: "env"},
		{Name: "mutate"},
		{Name: "garbage"},
		{Name: "crash"},
	}
)

func main() {
	fmt.Fprintln(os.Stderr, "mock-mcp: starting")
	in := bufio.NewReader(os.Stdin)
	for {
		body, err := readFrame(in)
		if err != nil {
			return
		}
		var msg rpcMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			continue
		}
		handle(&msg)
	}
}

func handle(msg *rpcMessage) {
	switch msg.Method {
	case "initialize":
		handleInitialize(msg)
	case "notifications/initialized":
		stateMu.Lock()
		initialized = true
		stateMu.Unlock()
		if mode == "exit-on-ready" {
			os.Exit(0)
		}
	case "tools/list":
		handleList(msg)
	case "tools/call":
		handleCall(msg)
	case "":
		// Response to something we never sent.
	default:
		if len(msg.ID) > 0 {
			replyError(msg.ID, -32601, "method not found: "+msg.Method, nil)
		}
	}
}

func handleInitialize(msg *rpcMessage) {
	var params struct {
		ClientInfo json.RawMessage `json:"clientInfo"`
	}
	_ = json.Unmarshal(msg.Params, &params)
	stateMu.Lock()
	clientInfo = params.ClientInfo
	stateMu.Unlock()

	switch mode {
	case "init-error":
		replyError(msg.ID, -32603, "initialize refused", nil)
	case "init-silent":
	case "no-server-info":
		reply(msg.ID, map[string]any{"capabilities": map[string]any{}})
	default:
		reply(msg.ID, map[string]any{
			"serverInfo":   map[string]any{"name": "mock-mcp", "version": "1.0.0"},
			"capabilities": map[string]any{"tools": map[string]any{"listChanged": true}},
		})
	}
}

func handleList(msg *rpcMessage) {
	var params struct {
		Cursor string `json:"cursor"`
	}
	_ = json.Unmarshal(msg.Params, &params)

	stateMu.Lock()
	all := append([]tool(nil), tools...)
	stateMu.Unlock()

	if mode != "paged" {
		reply(msg.ID, map[string]any{"tools": all})
		return
	}
	half := len(all) / 2
	if params.Cursor == "" {
		reply(msg.ID, map[string]any{"tools": all[:half], "nextCursor": "page-2"})
		return
	}
	reply(msg.ID, map[string]any{"tools": all[half:]})
}

func handleCall(msg *rpcMessage) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		replyError(msg.ID, -32602, "invalid params", nil)
		return
	}
	args := params.Arguments

	switch params.Name {
	case "echo":
		replyContent(msg.ID, map[string]any{"tool": params.Name, "arguments": args})
	case "list_repositories":
		replyContent(msg.ID, map[string]any{
			"repositories": []string{"alpha", "beta"},
			"arguments":    args,
		})
	case "slow":
		id := msg.ID
		go func() {
			time.Sleep(2 * time.Second)
			replyContent(id, "slow done")
		}()
	case "fail":
		replyError(msg.ID, -32000, "tool failed", map[string]any{"reason": "boom"})
	case "handshake":
		stateMu.Lock()
		content := map[string]any{"initialized": initialized, "clientInfo": clientInfo}
		stateMu.Unlock()
		replyContent(msg.ID, content)
	case "env":
		wd, _ := os.Getwd()
		replyContent(msg.ID, map[string]any{"value": os.Getenv("MOCK_VAR"), "dir": wd})
	case "mutate":
		stateMu.Lock()
		tools = append(tools, tool{Name: "late_tool"})
		stateMu.Unlock()
		send(rpcMessage{JSONRPC: "2.0", Method: "notifications/tools/list_changed"})
		replyContent(msg.ID, "mutated")
	case "garbage":
		writeRaw([]byte("{not json"))
		replyContent(msg.ID, "after garbage")
	case "crash":
		fmt.Fprintln(os.Stderr, "mock-mcp: crashing")
		os.Exit(3)
	default:
		replyError(msg.ID, -32602, "unknown tool: "+params.Name, nil)
	}
}

func replyContent(id json.RawMessage, content any) {
	reply(id, map[string]any{"content": content})
}

func reply(id json.RawMessage, result any) {
	send(rpcMessage{JSONRPC: "2.0", ID: id, Result: result})
}

func replyError(id json.RawMessage, code int, message string, data any) {
	send(rpcMessage{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message, Data: data}})
}

func send(msg rpcMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mock-mcp: marshal: %v\n", err)
		return
	}
	writeRaw(body)
}

func writeRaw(body []byte) {
	writeMu.Lock()
	defer writeMu.Unlock()
	fmt.Fprintf(out, "Content-Length: %d\r\n\r\n", len(body))
	out.Write(body)
	out.Flush()
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if length < 0 {
				continue
			}
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, err
			}
			length = n
		}
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
