package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dmora/toolbridge/internal/cli"
)

func toolsCmd(a *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the server exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Tools(cmd.Context())
		},
	}
}

func callCmd(a *cli.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <tool> [key=value ...]",
		Short: "Call a tool and print its content",
		Long: `Call a tool with arguments given as key=value pairs, a JSON object, or both.

Values are sent typed: "true"/"false" become booleans and numeric strings
become numbers. Pairs override keys of the same name in --args.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonArgs, err := cmd.Flags().GetString("args")
			if err != nil {
				return errors.Wrap(err, "error reading args")
			}
			toolArgs, err := cli.ParseArgs(args[1:], jsonArgs)
			if err != nil {
				return err
			}
			return a.Call(cmd.Context(), args[0], toolArgs)
		},
	}
	cmd.Flags().String("args", "", "tool arguments as a JSON object")
	return cmd
}

func reposCmd(a *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "repos",
		Short: "List repositories through the configured or discovered tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Repos(cmd.Context())
		},
	}
}
