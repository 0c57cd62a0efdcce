package config

import (
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestExpandEnv(t *testing.T) {
	lookup := lookupFrom(map[string]string{
		"TOKEN": "abc",
		"HOME":  "/home/me",
		"EMPTY": "",
	})
	tests := []struct {
		in   string
		want string
	}{
		{"%TOKEN%", "abc"},
		{"Bearer %TOKEN%!", "Bearer abc!"},
		{"$TOKEN", "abc"},
		{"${HOME}/bin", "/home/me/bin"},
		{"$HOME/bin:$TOKEN", "/home/me/bin:abc"},
		{"%EMPTY%x", "x"},
		{"%UNSET%", "%UNSET%"},
		{"$UNSET", "$UNSET"},
		{"${UNSET}", "${UNSET}"},
		{"100%", "100%"},
		{"50% off 20%", "50% off 20%"},
		{"cost $5", "cost $5"},
		{"trailing $", "trailing $"},
		{"${}", "${}"},
		{"${bad-name}", "${bad-name}"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandEnv(tt.in, lookup), tt.in)
	}
}

func TestExpandEnvMap(t *testing.T) {
	lookup := lookupFrom(map[string]string{"X": "1"})
	in := map[string]string{"A": "%X%", "B": "$X$X"}

	out := ExpandEnvMap(in, lookup)
	assert.Equal(t, map[string]string{"A": "1", "B": "11"}, out)
	assert.Equal(t, "%X%", in["A"])
	assert.Nil(t, ExpandEnvMap(nil, lookup))
}

func TestStringKeys(t *testing.T) {
	in := map[interface{}]interface{}{
		"a": []interface{}{map[interface{}]interface{}{1: "one"}},
	}
	assert.Equal(t, map[string]any{
		"a": []any{map[string]any{"1": "one"}},
	}, stringKeys(in))
}

func decodeInto(input map[string]any, out *MCPConfig) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHooks(),
		Result:     out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
