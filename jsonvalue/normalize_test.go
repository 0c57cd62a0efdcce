package jsonvalue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Strings(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{in: "true", want: BoolValue(true)},
		{in: "FALSE", want: BoolValue(false)},
		{in: " True ", want: BoolValue(true)},
		{in: "42", want: IntValue(42)},
		{in: "-7", want: IntValue(-7)},
		{in: "+8", want: IntValue(8)},
		{in: "3.14", want: FloatValue(3.14)},
		{in: "1e3", want: FloatValue(1000)},
		{in: ".5", want: FloatValue(0.5)},
		{in: "99999999999999999999", want: FloatValue(1e20)},
		{in: "user:alice", want: StringValue("user:alice")},
		{in: "", want: StringValue("")},
		{in: "NaN", want: StringValue("NaN")},
		{in: "Inf", want: StringValue("Inf")},
		{in: "0x10", want: StringValue("0x10")},
		{in: "1,000", want: StringValue("1,000")},
		{in: "yes", want: StringValue("yes")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(StringValue(tt.in)))
		})
	}
}

func TestNormalize_Recursive(t *testing.T) {
	in, err := Parse([]byte(`{"query":"user:alice","perPage":"30","flags":["true","x",{"deep":"2.5"}],"n":7,"nil":null}`))
	require.NoError(t, err)

	out, err := json.Marshal(Normalize(in))
	require.NoError(t, err)
	assert.Equal(t, `{"query":"user:alice","perPage":30,"flags":[true,"x",{"deep":2.5}],"n":7,"nil":null}`, string(out))
}

func TestNormalizeAny_NativeAndParsedAgree(t *testing.T) {
	native := map[string]any{"page": "2", "private": "false", "q": "go"}
	parsed := json.RawMessage(`{"page":"2","private":"false","q":"go"}`)

	a, err := NormalizeAny(native)
	require.NoError(t, err)
	b, err := NormalizeAny(parsed)
	require.NoError(t, err)

	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	assert.JSONEq(t, string(aj), string(bj))
	assert.JSONEq(t, `{"page":2,"private":false,"q":"go"}`, string(aj))
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := ObjectValue(Member{Key: "a", Value: StringValue("1")})
	_ = Normalize(in)
	a, _ := in.Get("a")
	assert.Equal(t, String, a.Kind())
}
