package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

var percentVar = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)

// ExpandEnv replaces %VAR%, $VAR and ${VAR} references with values from
// lookup. Unknown variables are left as written.
func ExpandEnv(s string, lookup func(string) (string, bool)) string {
	s = percentVar.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := lookup(m[1 : len(m)-1]); ok {
			return v
		}
		return m
	})
	if !strings.Contains(s, "$") {
		return s
	}
	return expandDollar(s, lookup)
}

// ExpandEnvMap returns a copy of env with every value expanded.
func ExpandEnvMap(env map[string]string, lookup func(string) (string, bool)) map[string]string {
	if env == nil {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = ExpandEnv(v, lookup)
	}
	return out
}

func expandDollar(s string, lookup func(string) (string, bool)) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		name, width := dollarName(s[i+1:])
		if name == "" {
			b.WriteByte(s[i])
			continue
		}
		if v, ok := lookup(name); ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+1+width])
		}
		i += width
	}
	return b.String()
}

// dollarName returns the variable name following a '$' and how many bytes
// the reference occupies after it.
func dollarName(s string) (string, int) {
	if s[0] == '{' {
		end := strings.IndexByte(s, '}')
		if end < 2 || !isName(s[1:end]) {
			return "", 0
		}
		return s[1:end], end + 1
	}
	n := 0
	for n < len(s) && isNameByte(s[n], n == 0) {
		n++
	}
	return s[:n], n
}

func isName(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i], i == 0) {
			return false
		}
	}
	return s != ""
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return !first
	default:
		return false
	}
}

// caseSensitive mirrors the maps whose keys viper would lowercase.
type caseSensitive struct {
	MCP struct {
		Env               map[string]string      `yaml:"env"`
		RepoListArguments map[string]interface{} `yaml:"repoListArguments"`
	} `yaml:"mcp"`
}

// restoreKeyCase re-reads the maps whose keys are passed to the tool
// server verbatim. JSON documents parse as YAML.
func restoreKeyCase(cfg *Config, path string) error {
	if ext := strings.ToLower(path); !strings.HasSuffix(ext, ".yaml") &&
		!strings.HasSuffix(ext, ".yml") && !strings.HasSuffix(ext, ".json") {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "config: read %s", path)
	}
	var raw caseSensitive
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.Wrapf(err, "config: parse %s", path)
	}
	if raw.MCP.Env != nil {
		cfg.MCP.Env = raw.MCP.Env
	}
	if raw.MCP.RepoListArguments != nil {
		args := make(map[string]any, len(raw.MCP.RepoListArguments))
		for k, v := range raw.MCP.RepoListArguments {
			args[k] = stringKeys(v)
		}
		cfg.MCP.RepoListArguments = args
	}
	return nil
}

// stringKeys converts yaml.v2's map[interface{}]interface{} trees into
// map[string]any.
func stringKeys(v interface{}) any {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case []interface{}:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = stringKeys(val)
		}
		return out
	default:
		return v
	}
}
