// Package cli implements the toolbridge command-line operations.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/dmora/toolbridge"
	"github.com/dmora/toolbridge/config"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// ToolClient is the part of *toolbridge.Client the commands use.
type ToolClient interface {
	Start(ctx context.Context) error
	ListTools(ctx context.Context) ([]toolbridge.Tool, error)
	CallTool(ctx context.Context, name string, args any) (json.RawMessage, error)
	ListRepositories(ctx context.Context) (json.RawMessage, error)
	Close() error
}

// Params holds command-line settings shared by all commands.
type Params struct {
	Config        config.Config
	Output        string
	StartAttempts uint
	StartDelay    time.Duration
}

// App runs commands against one tool server. Out receives results; logs go
// to the logrus logger.
type App struct {
	Params    *Params
	Out       io.Writer
	Log       *log.Entry
	NewClient func(config.Config) ToolClient
}

// New returns an App writing to stdout and spawning real clients.
func New() *App {
	return &App{
		Params: &Params{Output: OutputText, StartAttempts: 1},
		Out:    os.Stdout,
		Log:    log.NewEntry(log.StandardLogger()),
		NewClient: func(cfg config.Config) ToolClient {
			opts := append(cfg.ClientOptions(), toolbridge.WithLogger(log.WithField("component", "toolbridge")))
			return toolbridge.New(opts...)
		},
	}
}

// Tools prints the server's tools.
func (a *App) Tools(ctx context.Context) error {
	return a.withClient(ctx, func(c ToolClient) error {
		tools, err := c.ListTools(ctx)
		if err != nil {
			return err
		}
		if a.Params.Output != OutputText {
			return a.encode(tools)
		}
		w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION")
		for _, t := range tools {
			fmt.Fprintf(w, "%s\t%s\n", t.Name, firstLine(t.Description))
		}
		return w.Flush()
	})
}

// Call invokes one tool and prints its content.
func (a *App) Call(ctx context.Context, name string, args map[string]any) error {
	return a.withClient(ctx, func(c ToolClient) error {
		content, err := c.CallTool(ctx, name, args)
		if err != nil {
			return err
		}
		return a.printRaw(content)
	})
}

// Repos calls the repository-listing tool and prints its content.
func (a *App) Repos(ctx context.Context) error {
	return a.withClient(ctx, func(c ToolClient) error {
		content, err := c.ListRepositories(ctx)
		if err != nil {
			return err
		}
		return a.printRaw(content)
	})
}

// ParseArgs turns key=value pairs and an optional JSON object into tool
// arguments. Pairs override keys from the JSON object. Values stay strings;
// the client normalizes them.
func ParseArgs(pairs []string, jsonArgs string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(jsonArgs) != "" {
		if err := json.Unmarshal([]byte(jsonArgs), &args); err != nil {
			return nil, errors.Wrap(err, "invalid --args JSON object")
		}
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("invalid argument %q, expected key=value", p)
		}
		args[k] = v
	}
	return args, nil
}

// --- Internal ---

func (a *App) withClient(ctx context.Context, fn func(ToolClient) error) error {
	if err := a.Params.Config.Validate(); err != nil {
		return err
	}
	c := a.NewClient(a.Params.Config)
	defer func() { _ = c.Close() }()

	if err := a.start(ctx, c); err != nil {
		return err
	}
	return fn(c)
}

// start retries startup failures only; a disposed client or cancelled
// context ends the loop.
func (a *App) start(ctx context.Context, c ToolClient) error {
	attempts := a.Params.StartAttempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(
		func() error { return c.Start(ctx) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(a.Params.StartDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, toolbridge.ErrStartup)
		}),
		retry.OnRetry(func(n uint, err error) {
			a.Log.WithError(err).WithField("attempt", n+1).Warn("tool server start failed")
		}),
	)
}

func (a *App) printRaw(content json.RawMessage) error {
	if len(content) == 0 {
		content = json.RawMessage("null")
	}
	var v any
	if err := json.Unmarshal(content, &v); err != nil {
		return errors.Wrap(err, "decode tool content")
	}
	if a.Params.Output == OutputText {
		if s, ok := v.(string); ok {
			_, err := fmt.Fprintln(a.Out, s)
			return err
		}
	}
	return a.encode(v)
}

func (a *App) encode(v any) error {
	switch a.Params.Output {
	case OutputYAML:
		b, err := yaml.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		_, err = a.Out.Write(b)
		return err
	default:
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	return s
}
