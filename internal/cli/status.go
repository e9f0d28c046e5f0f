package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStatusCmd shows the working tree status, mimicking `git status -s`.
func newStatusCmd(repoPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the working tree status (mimics `git status -s`)",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(*repoPath)
			if err != nil {
				return err
			}

			status, err := repo.GetStatus()
			if err != nil {
				return err
			}

			for _, entry := range status.Entries {
				if entry.IndexStatus != "" || entry.WorktreeStatus != "" {
					fmt.Fprintln(cmd.OutOrStdout(), entry.String())
				}
			}
			return nil
		},
	}
}
