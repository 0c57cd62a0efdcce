package toolbridge_test

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmora/toolbridge"
	"github.com/dmora/toolbridge/jsonvalue"
)

func ExampleResolveOptions() {
	opts := toolbridge.ResolveOptions(
		toolbridge.WithCommand("repo-tools", "--stdio"),
		toolbridge.WithRequestTimeout(30*time.Second),
		toolbridge.WithRepoListTool("list_repositories", map[string]any{"limit": 50}),
	)
	fmt.Println(opts.Command, opts.Args)
	fmt.Println(opts.RequestTimeout)
	fmt.Println(opts.RepoListToolName)
	// Output:
	// repo-tools [--stdio]
	// 30s
	// list_repositories
}

func ExampleResolveOptions_defaults() {
	opts := toolbridge.ResolveOptions()
	fmt.Println(opts.Command == "")
	fmt.Println(opts.RequestTimeout)
	fmt.Println(opts.GracePeriod)
	fmt.Println(opts.ClientInfo.Name)
	// Output:
	// true
	// 15s
	// 2s
	// toolbridge
}

func ExampleClient_State() {
	c := toolbridge.New(toolbridge.WithCommand("repo-tools"))
	fmt.Println(c.State())
	_ = c.Close()
	fmt.Println(c.State())
	// Output:
	// not_started
	// disposed
}

func Example_normalizedArguments() {
	args, _ := jsonvalue.NormalizeAny(map[string]any{
		"archived": "FALSE",
		"limit":    "25",
		"query":    "go modules",
	})
	b, _ := json.Marshal(args)
	fmt.Println(string(b))
	// Output: {"archived":false,"limit":25,"query":"go modules"}
}
