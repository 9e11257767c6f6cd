package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paneflow-dev/paneflow/internal/display"
	"github.com/paneflow-dev/paneflow/internal/pane"
	"github.com/paneflow-dev/paneflow/internal/runner"
	"github.com/paneflow-dev/paneflow/internal/tools/builtin"
	"github.com/paneflow-dev/paneflow/internal/watchrun"
)

func newRunCmd() *cobra.Command {
	var (
		varsFlag []string
		watch    bool
		live     bool
	)

	cmd := &cobra.Command{
		Use:   "run <workflow.yml>",
		Short: "Load and execute a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !pane.InTmux() {
				fmt.Fprintln(os.Stderr, "orchestrator run must be started from inside a tmux session")
				os.Exit(1)
			}

			vars, err := parseVars(varsFlag)
			if err != nil {
				return err
			}

			opts := runner.Options{
				WorkflowPath:  args[0],
				ProjectDir:    cfg.ProjectDir,
				Vars:          vars,
				SignalPort:    cfg.SignalPort,
				TmuxSession:   cfg.TmuxSession,
				Display:       display.NewTermDisplay(os.Stdout, cfg.NoColor),
				RegexSearcher: builtin.NewGlobSearcher(),
			}
			if cfg.Checklist.ModelCommand != "" {
				opts.ModelInvoker = builtin.NewCommandInvoker(cfg.Checklist.ModelCommand)
			}

			runOnce := func(ctx context.Context) error {
				if live && !cfg.NoColor {
					lv := display.NewLive(os.Stdout)
					opts.Display = lv
					defer lv.Stop()
				}
				_, runErr := runner.Run(ctx, opts)
				return runErr
			}

			ctx := cmd.Context()
			if !watch {
				err := runOnce(ctx)
				os.Exit(runner.ExitCode(err))
			}

			return watchrun.Watch(ctx, args[0], watchrun.DefaultDebounce, runOnce, func(err error) {
				fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
			})
		},
	}

	cmd.Flags().StringArrayVar(&varsFlag, "var", nil, "set a variable as key=value (repeatable)")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run the workflow whenever the file changes")
	cmd.Flags().BoolVar(&live, "live", false, "render progress as a live in-place view")
	return cmd
}

func parseVars(flags []string) (map[string]string, error) {
	vars := make(map[string]string, len(flags))
	for _, f := range flags {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --var %q, expected key=value", f)
		}
		vars[k] = v
	}
	return vars, nil
}
