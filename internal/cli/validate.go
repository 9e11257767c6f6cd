package cli

import (
	"fmt"
	"os"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/paneflow-dev/paneflow/internal/workflow"
)

func newValidateCmd() *cobra.Command {
	var diffAgainst string

	cmd := &cobra.Command{
		Use:   "validate <workflow.yml>",
		Short: "Parse and statically validate a workflow without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := workflow.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: ok (%d steps)\n", args[0], len(wf.Steps))

			if diffAgainst == "" {
				return nil
			}
			prev, err := os.ReadFile(diffAgainst)
			if err != nil {
				return fmt.Errorf("reading --diff baseline: %w", err)
			}
			cur, err := yaml.Marshal(wf)
			if err != nil {
				return err
			}
			dmp := diffmatchpatch.New()
			diffs := dmp.DiffMain(string(prev), string(cur), false)
			fmt.Println(dmp.DiffPrettyText(diffs))
			return nil
		},
	}

	cmd.Flags().StringVar(&diffAgainst, "diff", "", "show a diff against a previously saved parsed form")
	return cmd
}
