package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmora/toolbridge"
	"github.com/dmora/toolbridge/config"
	"github.com/dmora/toolbridge/internal/cli"
)

type recordingClient struct {
	cfg  config.Config
	name string
	args any
}

func (r *recordingClient) Start(context.Context) error { return nil }

func (r *recordingClient) ListTools(context.Context) ([]toolbridge.Tool, error) {
	return []toolbridge.Tool{{Name: "echo"}}, nil
}

func (r *recordingClient) CallTool(_ context.Context, name string, args any) (json.RawMessage, error) {
	r.name, r.args = name, args
	return json.RawMessage(`{"ok":true}`), nil
}

func (r *recordingClient) ListRepositories(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`["alpha"]`), nil
}

func (r *recordingClient) Close() error { return nil }

func runCmd(t *testing.T, args ...string) (*recordingClient, string, error) {
	t.Helper()
	rc := &recordingClient{}
	app := cli.New()
	app.NewClient = func(cfg config.Config) cli.ToolClient {
		rc.cfg = cfg
		return rc
	}

	out := new(bytes.Buffer)
	cmd := rootCmdWithApp(app)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return rc, out.String(), err
}

func TestCallCommand(t *testing.T) {
	rc, out, err := runCmd(t, "call", "echo", "limit=10", "--args", `{"owner":"me"}`,
		"--command", "srv", "--timeout", "2s", "-o", "json")
	require.NoError(t, err)

	assert.Equal(t, "echo", rc.name)
	assert.Equal(t, map[string]any{"limit": "10", "owner": "me"}, rc.args)
	assert.Equal(t, "srv", rc.cfg.MCP.Command)
	assert.Equal(t, 2*time.Second, rc.cfg.MCP.RequestTimeout)
	assert.JSONEq(t, `{"ok":true}`, out)
}

func TestToolsCommandWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mcp:\n  command: from-file\n  requestTimeoutMs: 1234\n"), 0o600))

	rc, out, err := runCmd(t, "tools", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", rc.cfg.MCP.Command)
	assert.Equal(t, 1234*time.Millisecond, rc.cfg.MCP.RequestTimeout)
	assert.Contains(t, out, "echo")
}

func TestReposCommandYAML(t *testing.T) {
	_, out, err := runCmd(t, "repos", "--command", "srv", "-o", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "- alpha\n", out)
}

func TestCommandErrors(t *testing.T) {
	_, _, err := runCmd(t, "tools", "--command", "srv", "-o", "xml")
	assert.Error(t, err)

	_, _, err = runCmd(t, "call", "--command", "srv")
	assert.Error(t, err)

	_, _, err = runCmd(t, "call", "echo", "bad-pair", "--command", "srv")
	assert.Error(t, err)

	_, _, err = runCmd(t, "tools")
	assert.Error(t, err, "mcp.command is required")
}
