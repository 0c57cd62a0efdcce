package cmd

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dmora/toolbridge/config"
	"github.com/dmora/toolbridge/internal/cli"
)

// RootCmd is the root Cobra command that gets called from the main func.
func RootCmd() *cobra.Command {
	return rootCmdWithApp(cli.New())
}

// Takes a caller-supplied app struct; useful for testing.
func rootCmdWithApp(a *cli.App) *cobra.Command {
	v := config.New()
	cmd := &cobra.Command{
		Use:          "toolbridge",
		Short:        "toolbridge talks to stdio JSON-RPC tool servers.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, v, a)
		},
	}

	addConnectionFlags(cmd.PersistentFlags(), v)

	cmd.AddCommand(
		toolsCmd(a),
		callCmd(a),
		reposCmd(a),
	)
	return cmd
}

func addConnectionFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.StringP("config", "c", "", "path to a YAML or JSON configuration file")
	fs.String("command", "", "tool server executable (overrides mcp.command)")
	fs.Duration("timeout", 0, "per-request timeout (overrides mcp.requestTimeoutMs)")
	fs.StringP("output", "o", cli.OutputText, "output format: text, json or yaml")
	fs.Uint("start-attempts", 1, "number of attempts to start the tool server")
	fs.Duration("start-delay", time.Second, "delay between start attempts")

	_ = v.BindPFlag("mcp.command", fs.Lookup("command"))
	_ = v.BindPFlag("mcp.requestTimeoutMs", fs.Lookup("timeout"))
}

func initParams(cmd *cobra.Command, v *viper.Viper, a *cli.App) error {
	flags := cmd.Flags()
	path, err := flags.GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Load(v, path)
	if err != nil {
		return err
	}
	if err := cli.ConfigureLogging(cfg.Log, os.Stderr); err != nil {
		return err
	}

	output, err := flags.GetString("output")
	if err != nil {
		return err
	}
	switch output {
	case cli.OutputText, cli.OutputJSON, cli.OutputYAML:
	default:
		return errors.Errorf("unknown output format %q", output)
	}
	attempts, err := flags.GetUint("start-attempts")
	if err != nil {
		return err
	}
	delay, err := flags.GetDuration("start-delay")
	if err != nil {
		return err
	}

	a.Params.Config = cfg
	a.Params.Output = output
	a.Params.StartAttempts = attempts
	a.Params.StartDelay = delay
	a.Out = cmd.OutOrStdout()
	return nil
}
