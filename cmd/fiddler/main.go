// Command fiddler is the command-line front end for the pipeline kernel:
// it registers every built-in plugin, then either runs a YAML pipeline
// document until its input stage signals end of input (or the process
// receives SIGINT/SIGTERM), or dumps every registered plugin's JSON
// Schema for tooling.
//
// Grounded on re-cinq-wave's cmd/wave (cobra root command wiring a
// version string and subcommands) and kazuyuki114-snmp_collector's
// cmd/snmpcollector (signal.NotifyContext-driven run loop). This package
// is ambient glue: it contains no logic the kernel does not already
// expose through Runtime and Registry.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	applog "github.com/rc1405/fiddler-sub000/internal/log"
	"github.com/rc1405/fiddler-sub000/internal/registry"
	"github.com/rc1405/fiddler-sub000/internal/runtime"
	"github.com/rc1405/fiddler-sub000/plugins/inputs/redisinput"
	"github.com/rc1405/fiddler-sub000/plugins/inputs/stdinput"
	"github.com/rc1405/fiddler-sub000/plugins/metrics/prometheusmetrics"
	"github.com/rc1405/fiddler-sub000/plugins/outputs/natsoutput"
	"github.com/rc1405/fiddler-sub000/plugins/outputs/stdoutput"
	"github.com/rc1405/fiddler-sub000/plugins/processors/filter"
	"github.com/rc1405/fiddler-sub000/plugins/processors/noop"
	"github.com/rc1405/fiddler-sub000/plugins/processors/script"
	"github.com/rc1405/fiddler-sub000/plugins/processors/transform"
)

var version = "dev"

func registerBuiltins(reg *registry.Registry) error {
	registrars := []func(*registry.Registry) error{
		stdinput.Register,
		stdoutput.Register,
		redisinput.Register,
		natsoutput.Register,
		prometheusmetrics.Register,
		filter.Register,
		transform.Register,
		script.Register,
		noop.Register,
	}
	for _, r := range registrars {
		if err := r(reg); err != nil {
			return err
		}
	}
	return nil
}

func newRunCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Run a pipeline document until its input ends or the process is signaled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}

			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			logger := applog.New(applog.Config{Level: level, Format: applog.Format(logFormat)})

			reg := registry.New()
			if err := registerBuiltins(reg); err != nil {
				return fmt.Errorf("register plugins: %w", err)
			}

			rt, err := runtime.FromConfig(reg, string(raw), logger)
			if err != nil {
				return fmt.Errorf("parse config: %w", err)
			}
			if timeout > 0 {
				rt.SetTimeout(timeout)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return rt.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error, or disabled")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall run timeout; 0 disables it")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print every registered plugin's JSON Schema, organized by kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.New()
			if err := registerBuiltins(reg); err != nil {
				return fmt.Errorf("register plugins: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reg.ExportSchemas())
		},
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "fiddler",
		Short:   "A declarative data-streaming pipeline runtime",
		Version: version,
	}
	root.AddCommand(newRunCmd(), newSchemaCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
