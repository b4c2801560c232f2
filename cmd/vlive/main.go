// Command vlive is a terminal client for a live evaluator.
//
// Usage:
//
//	vlive repl                      # interactive session
//	vlive eval design.v             # submit a file and print the results
//	vlive declare --std led --out 8 # import a standard component
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Paranoid-AF/vlive"
)

// Version is set at build time via -ldflags.
var Version = "dev"

type globalFlags struct {
	configPath string
	url        string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:          "vlive",
		Short:        "Live session client for a remote evaluator",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default "+vlive.ConfigPath()+")")
	root.PersistentFlags().StringVar(&flags.url, "url", "", "evaluator websocket url (overrides config and $VLIVE_URL)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newReplCmd(&flags),
		newEvalCmd(&flags),
		newDeclareCmd(&flags),
		newConfigCmd(&flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "vlive", Version)
			},
		},
	)
	return root
}

func setupLogging(flags globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	level, err := vlive.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if flags.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func loadConfig(flags globalFlags) (*vlive.Config, error) {
	if flags.configPath != "" {
		return vlive.LoadConfigFile(flags.configPath)
	}
	return vlive.LoadConfig()
}
