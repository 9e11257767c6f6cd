// Package cli wires the cobra command tree: a thin main in cmd/orchestrator plus the
// fuller command definitions here.
package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/paneflow-dev/paneflow/internal/config"
	"github.com/paneflow-dev/paneflow/internal/logging"
)

// Build information, set by goreleaser via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	cfgFile string
	noColor bool
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "orchestrator",
	Short:         "Run declarative workflows that drive interactive tools in terminal panes",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		if noColor {
			cfg.NoColor = true
		}
		if verbose {
			cfg.Verbose = true
		}
		if !isatty.IsTerminal(os.Stdout.Fd()) || termenv.EnvNoColor() {
			cfg.NoColor = true
		}
		logging.Setup(os.Stderr, cfg.Verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(newRunCmd(), newValidateCmd(), newStepsCmd(), newVersionCmd())
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
