package toolbridge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/dmora/toolbridge/jsonvalue"
)

// repoListHints locate a repository-listing tool when none is configured.
var repoListHints = []string{"repo", "repository", "list"}

// ListTools returns the server's tools in server order, following
// pagination cursors. It always queries the server and refreshes the
// discovery cache.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	s, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	tools, err := c.fetchTools(ctx, s)
	if err != nil {
		return nil, err
	}
	if c.tools != nil {
		c.tools.SetDefault(toolsCacheKey, tools)
	}
	return tools, nil
}

// ListToolNames returns the names of the server's tools in server order.
func (c *Client) ListToolNames(ctx context.Context) ([]string, error) {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names, nil
}

// CallTool invokes the named tool and returns the content of its result
// unchanged.
//
// args may be native Go values, a jsonvalue.Value, or raw JSON. They are
// normalized first: "true"/"false" become booleans, numeric strings become
// numbers. Nil args are sent as an empty object.
func (c *Client) CallTool(ctx context.Context, name string, args any) (json.RawMessage, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidToolName
	}
	params, err := toolArguments(args)
	if err != nil {
		return nil, err
	}
	s, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	var res callToolResult
	if err := c.call(ctx, s, MethodToolsCall, callToolParams{Name: name, Arguments: params}, &res); err != nil {
		return nil, err
	}
	c.log.WithFields(log.Fields{"tool": name, "bytes": len(res.Content)}).Debug("tool call complete")
	return res.Content, nil
}

// DiscoverTool returns the first tool whose name contains one of hints,
// compared case-insensitively. Hints are tried in order and, for each
// hint, tools in server order. Empty hints are ignored. Returns
// ErrToolNotFound when nothing matches.
func (c *Client) DiscoverTool(ctx context.Context, hints ...string) (string, error) {
	tools, err := c.cachedTools(ctx)
	if err != nil {
		return "", err
	}
	if name, ok := matchTool(tools, hints); ok {
		return name, nil
	}
	return "", errors.Wrapf(ErrToolNotFound, "hints %q", hints)
}

// ListRepositories calls the configured repository-listing tool, or the
// first tool matching "repo", "repository" or "list", with the configured
// default arguments.
func (c *Client) ListRepositories(ctx context.Context) (json.RawMessage, error) {
	name := c.opts.RepoListToolName
	if name == "" {
		var err error
		if name, err = c.DiscoverTool(ctx, repoListHints...); err != nil {
			return nil, err
		}
	}
	return c.CallTool(ctx, name, c.opts.RepoListArguments)
}

// --- Internal ---

func (c *Client) fetchTools(ctx context.Context, s *session) ([]Tool, error) {
	tools := []Tool{}
	var cursor string
	for page := 0; page < maxToolPages; page++ {
		var res listToolsResult
		if err := c.call(ctx, s, MethodToolsList, listToolsParams{Cursor: cursor}, &res); err != nil {
			return nil, err
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		cursor = res.NextCursor
	}
	return nil, errors.Errorf("toolbridge: tools/list exceeded %d pages", maxToolPages)
}

// cachedTools serves discovery from the cache when enabled.
func (c *Client) cachedTools(ctx context.Context) ([]Tool, error) {
	if c.tools != nil {
		if v, ok := c.tools.Get(toolsCacheKey); ok {
			if c.State() == StateDisposed {
				return nil, ErrClientDisposed
			}
			return v.([]Tool), nil
		}
	}
	return c.ListTools(ctx)
}

func matchTool(tools []Tool, hints []string) (string, bool) {
	for _, hint := range hints {
		h := strings.ToLower(hint)
		if h == "" {
			continue
		}
		for _, t := range tools {
			if strings.Contains(strings.ToLower(t.Name), h) {
				return t.Name, true
			}
		}
	}
	return "", false
}

func toolArguments(args any) (jsonvalue.Value, error) {
	if args == nil {
		return jsonvalue.ObjectValue(), nil
	}
	v, err := jsonvalue.NormalizeAny(args)
	if err != nil {
		return jsonvalue.Value{}, errors.Wrap(err, "toolbridge: tool arguments")
	}
	if v.Kind() == jsonvalue.Null {
		return jsonvalue.ObjectValue(), nil
	}
	return v, nil
}
