package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paneflow-dev/paneflow/internal/sharedstep"
)

func newStepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Inspect shared step definitions",
	}
	cmd.AddCommand(newStepsListCmd())
	return cmd
}

func newStepsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List resolvable shared steps (builtin + project)",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := sharedstep.NewResolver(cfg.ProjectDir)
			entries := resolver.List()
			if len(entries) == 0 {
				fmt.Println("no shared steps found")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%-30s %s\n", e.Ref, e.Description)
			}
			return nil
		},
	}
}
