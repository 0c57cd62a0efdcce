// Package config loads client configuration from a file and the
// environment.
//
// Keys live under "mcp" and "log". Durations ending in Ms accept either a
// number of milliseconds or a Go duration string. Values in mcp.env are
// expanded against the ambient environment before the child is spawned.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/dmora/toolbridge"
	"github.com/dmora/toolbridge/frame"
)

// EnvPrefix prefixes environment overrides: TOOLBRIDGE_MCP_COMMAND sets
// mcp.command.
const EnvPrefix = "TOOLBRIDGE"

// Config is the full configuration document.
type Config struct {
	MCP MCPConfig `mapstructure:"mcp"`
	Log LogConfig `mapstructure:"log"`
}

// MCPConfig describes the tool server and how the client talks to it.
type MCPConfig struct {
	Command           string            `mapstructure:"command"`
	Args              []string          `mapstructure:"args"`
	WorkingDirectory  string            `mapstructure:"workingDirectory"`
	Env               map[string]string `mapstructure:"env"`
	RepoListToolName  string            `mapstructure:"repoListToolName"`
	RepoListArguments map[string]any    `mapstructure:"repoListArguments"`
	RequestTimeout    time.Duration     `mapstructure:"requestTimeoutMs"`
	MaxFrameSize      int               `mapstructure:"maxFrameSize"`
	GracePeriod       time.Duration     `mapstructure:"gracePeriodMs"`
	ToolCacheTTL      time.Duration     `mapstructure:"toolCacheTtlMs"`
}

// LogConfig selects the log level and format ("text" or "json").
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers default values on v. Every scalar key gets one so
// that environment overrides are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mcp.command", "")
	v.SetDefault("mcp.args", []string{})
	v.SetDefault("mcp.workingDirectory", "")
	v.SetDefault("mcp.repoListToolName", "")
	v.SetDefault("mcp.requestTimeoutMs", toolbridge.DefaultRequestTimeout.Milliseconds())
	v.SetDefault("mcp.maxFrameSize", frame.DefaultMaxFrameSize)
	v.SetDefault("mcp.gracePeriodMs", toolbridge.DefaultGracePeriod.Milliseconds())
	v.SetDefault("mcp.toolCacheTtlMs", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// New returns a viper instance with defaults and environment overrides
// wired in.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (any format viper understands) and decodes it together
// with defaults and TOOLBRIDGE_* overrides. An empty path loads defaults
// and environment only.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "config: read %s", path)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHooks())); err != nil {
		return Config{}, errors.Wrap(err, "config: decode")
	}
	if path != "" {
		if err := restoreKeyCase(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	cfg.MCP.Env = ExpandEnvMap(cfg.MCP.Env, os.LookupEnv)
	return cfg, nil
}

// DecodeHooks returns the decode hooks used by Load.
func DecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		MillisecondsHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

var durationType = reflect.TypeOf(time.Duration(0))

// MillisecondsHookFunc decodes bare numbers into time.Duration as
// milliseconds. Strings with a unit ("1.5s") are parsed as durations.
func MillisecondsHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != durationType || f == durationType {
			return data, nil
		}
		switch f.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Millisecond, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(reflect.ValueOf(data).Uint()) * time.Millisecond, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(reflect.ValueOf(data).Float() * float64(time.Millisecond)), nil
		case reflect.String:
			s := strings.TrimSpace(data.(string))
			if s == "" {
				return time.Duration(0), nil
			}
			if d, err := time.ParseDuration(s); err == nil {
				return d, nil
			}
			ms, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Errorf("config: invalid duration %q", s)
			}
			return time.Duration(ms * float64(time.Millisecond)), nil
		default:
			return data, nil
		}
	}
}

// ClientOptions converts the configuration into client options.
func (c Config) ClientOptions() []toolbridge.Option {
	m := c.MCP
	opts := []toolbridge.Option{
		toolbridge.WithCommand(m.Command, m.Args...),
		toolbridge.WithRequestTimeout(m.RequestTimeout),
		toolbridge.WithToolCacheTTL(m.ToolCacheTTL),
	}
	if m.WorkingDirectory != "" {
		opts = append(opts, toolbridge.WithWorkingDir(m.WorkingDirectory))
	}
	if len(m.Env) > 0 {
		opts = append(opts, toolbridge.WithEnv(m.Env))
	}
	if m.RepoListToolName != "" || len(m.RepoListArguments) > 0 {
		opts = append(opts, toolbridge.WithRepoListTool(m.RepoListToolName, m.RepoListArguments))
	}
	if m.MaxFrameSize > 0 {
		opts = append(opts, toolbridge.WithMaxFrameSize(m.MaxFrameSize))
	}
	if m.GracePeriod > 0 {
		opts = append(opts, toolbridge.WithGracePeriod(m.GracePeriod))
	}
	return opts
}

// Validate reports configuration that cannot start a client.
func (c Config) Validate() error {
	if strings.TrimSpace(c.MCP.Command) == "" {
		return errors.New("config: mcp.command is required")
	}
	if c.MCP.RequestTimeout < 0 {
		return errors.New("config: mcp.requestTimeoutMs must not be negative")
	}
	if c.MCP.MaxFrameSize < 0 {
		return errors.New("config: mcp.maxFrameSize must not be negative")
	}
	return nil
}
