// Command assetpipe is a thin CLI front end over the asset pipeline core:
// running a bake server, smoke-loading a single asset from the command
// line, or listing registered asset types. All the actual logic lives in
// the library packages; this package only wires flags to them, the same
// division the teacher keeps between its root cmd package and its backends.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kestrelengine/assetpipe/config"
	"github.com/kestrelengine/assetpipe/corelog"
)

var cfg = config.Default()
var configFile string

func main() {
	// --config is special: it must take effect before the rest of the flags
	// are bound to cfg's (possibly file-overridden) defaults, so it gets its
	// own early, silent parse pass first.
	early := pflag.NewFlagSet("early", pflag.ContinueOnError)
	early.StringVar(&configFile, "config", "", "")
	early.ParseErrorsWhitelist.UnknownFlags = true
	early.Usage = func() {}
	_ = early.Parse(os.Args[1:])
	if configFile != "" {
		if err := config.LoadFile(cfg, configFile); err != nil {
			fmt.Fprintln(os.Stderr, "assetpipe:", err)
			os.Exit(1)
		}
	}

	root := &cobra.Command{
		Use:           "assetpipe",
		Short:         "Asset pipeline core: bake server, smoke loads, type listing.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			switch {
			case cfg.LogLevel >= 2:
				corelog.SetLevel(corelog.LevelDebug)
			case cfg.LogLevel == 1:
				corelog.SetLevel(corelog.LevelInfo)
			default:
				corelog.SetLevel(corelog.LevelError)
			}
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", configFile, "TOML config file to load before flags are applied")
	cfg.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCommand())
	root.AddCommand(newLoadCommand())
	root.AddCommand(newTypesCommand())
	root.AddCommand(newPackCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "assetpipe:", err)
		os.Exit(1)
	}
}
