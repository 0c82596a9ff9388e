// icogen generates, unpacks and extracts Windows icon containers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"git.sr.ht/~jackmordaunt/icogen"
	"git.sr.ht/~jackmordaunt/icogen/internal/config"
	"git.sr.ht/~jackmordaunt/icogen/internal/logging"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

const (
	exitOK = iota
	exitFailure
	exitUsage
	exitAlreadyRunning
)

var (
	configPath string
	logLevel   string
	cfg        config.Config
	logger     hclog.Logger
)

// usageError marks errors caused by how the tool was invoked.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...interface{}) error {
	return usageError{fmt.Errorf(format, args...)}
}

// args wraps a cobra argument validator so that its failures are usage
// errors.
func args(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		if err := v(cmd, a); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "icogen",
		Short:         "Build and take apart Windows icon containers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return usageError{err}
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			logger = logging.NewLogger("icogen", cfg.LogLevel, os.Stderr)
			logger.Debug("configuration", "sizes", cfg.Sizes, "filter", cfg.Filter, "workers", cfg.Workers)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to icogen.toml (default $ICOGEN_CONFIG or ./icogen.toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", logging.LevelFromEnv(), "Log level (trace, debug, info, warn, error)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	root.AddCommand(
		newGenerateCmd(),
		newUnpackCmd(),
		newExtractCmd(),
		newSysoCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  args(cobra.NoArgs),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "icogen %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", buildTimestamp())
		},
	}
}

func buildTimestamp() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	if exe, err := os.Executable(); err == nil {
		if stat, err := os.Stat(exe); err == nil {
			return stat.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return "unknown"
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var (
		usage   usageError
		running *icogen.AlreadyRunningError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &running):
		return exitAlreadyRunning
	case errors.As(err, &usage), errors.Is(err, icogen.ErrNoDestination):
		return exitUsage
	}
	return exitFailure
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(exitCode(err))
}
