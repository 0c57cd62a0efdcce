package toolbridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/dmora/toolbridge/frame"
)

// Defaults applied by New.
const (
	DefaultRequestTimeout    = 15 * time.Second
	DefaultGracePeriod       = 2 * time.Second
	DefaultReaderJoinTimeout = 500 * time.Millisecond
)

// Options holds resolved client configuration. New collapses functional
// options into this struct.
type Options struct {
	// Command is the tool server executable. Required.
	Command string

	// Args are passed to Command verbatim.
	Args []string

	// WorkingDir is the child's working directory. Empty inherits ours.
	WorkingDir string

	// Env overlays the inherited environment.
	Env map[string]string

	// RepoListToolName names the tool ListRepositories calls. Empty means
	// discover it by hint.
	RepoListToolName string

	// RepoListArguments are sent with every ListRepositories call.
	RepoListArguments map[string]any

	// RequestTimeout bounds every request. Zero disables the deadline.
	RequestTimeout time.Duration

	// MaxFrameSize is the largest inbound frame body accepted.
	MaxFrameSize int

	// GracePeriod is how long Close waits after SIGTERM before SIGKILL.
	GracePeriod time.Duration

	// ReaderJoinTimeout bounds how long Close waits for the reader goroutine.
	ReaderJoinTimeout time.Duration

	// ToolCacheTTL caches tools/list for discovery. Zero disables caching.
	ToolCacheTTL time.Duration

	// ClientInfo is the identity sent in the initialize handshake.
	ClientInfo Implementation

	// Logger receives client and tool server diagnostics.
	Logger *log.Entry

	// Registerer receives request metrics. Nil disables metrics.
	Registerer prometheus.Registerer
}

// Option configures a Client.
type Option func(*Options)

// ResolveOptions applies functional options over the defaults and returns
// the resolved config.
func ResolveOptions(opts ...Option) Options {
	o := Options{
		RequestTimeout:    DefaultRequestTimeout,
		MaxFrameSize:      frame.DefaultMaxFrameSize,
		GracePeriod:       DefaultGracePeriod,
		ReaderJoinTimeout: DefaultReaderJoinTimeout,
		ClientInfo:        Implementation{Name: defaultClientName, Version: defaultClientVersion},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = log.NewEntry(log.StandardLogger())
	}
	return o
}

// WithCommand sets the tool server executable and its arguments.
func WithCommand(command string, args ...string) Option {
	return func(o *Options) {
		o.Command = command
		o.Args = args
	}
}

// WithWorkingDir sets the child's working directory.
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnv overlays environment variables on the inherited environment.
// Repeated calls merge; later values win.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithRepoListTool sets the tool and default arguments used by
// ListRepositories. An empty name keeps hint-based discovery.
func WithRepoListTool(name string, args map[string]any) Option {
	return func(o *Options) {
		o.RepoListToolName = name
		o.RepoListArguments = args
	}
}

// WithRequestTimeout sets the per-request deadline. Zero disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.RequestTimeout = d
	}
}

// WithMaxFrameSize sets the largest inbound frame body accepted.
func WithMaxFrameSize(n int) Option {
	return func(o *Options) {
		o.MaxFrameSize = n
	}
}

// WithGracePeriod sets the SIGTERM to SIGKILL delay used by Close.
func WithGracePeriod(d time.Duration) Option {
	return func(o *Options) {
		o.GracePeriod = d
	}
}

// WithToolCacheTTL enables caching of tools/list for discovery.
func WithToolCacheTTL(d time.Duration) Option {
	return func(o *Options) {
		o.ToolCacheTTL = d
	}
}

// WithClientInfo overrides the identity sent during the handshake.
func WithClientInfo(name, version string) Option {
	return func(o *Options) {
		o.ClientInfo = Implementation{Name: name, Version: version}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Entry) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetricsRegisterer registers request metrics on reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registerer = reg
	}
}
