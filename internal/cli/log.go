package cli

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/AntonyCanut/gitlanes/internal/gitcore"
	"github.com/AntonyCanut/gitlanes/internal/graph"
	"github.com/AntonyCanut/gitlanes/internal/render"
)

// newLogCmd renders the commit graph in the terminal.
func newLogCmd(repoPath, configPath *string) *cobra.Command {
	var (
		limit   int
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Render the commit graph in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			repo, err := openRepository(*repoPath)
			if err != nil {
				return err
			}
			logger.Debug("repository opened", "name", repo.Name(), "commits", len(repo.Commits()))

			cfg, err := loadConfig(*configPath, repo)
			if err != nil {
				return err
			}

			opts := graph.Options{
				PaletteSize: cfg.Graph.PaletteSize,
				MaxCommits:  cfg.Graph.MaxCommits,
			}
			if limit > 0 {
				opts.MaxCommits = limit
			}

			ordered := graph.Order(repo.Commits())
			if opts.MaxCommits > 0 && len(ordered) > opts.MaxCommits {
				ordered = ordered[:opts.MaxCommits]
			}
			rows := graph.Layout(ordered, opts.PaletteSize)

			color := !noColor && term.IsTerminal(int(os.Stdout.Fd()))
			renderer := &render.Renderer{
				Out:    os.Stdout,
				Color:  color,
				Labels: refLabels(repo, color),
			}
			return renderer.Write(rows)
		},
	}

	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits shown")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

// refLabels formats the branch/tag decoration shown next to each commit.
func refLabels(repo *gitcore.Repository, color bool) map[gitcore.Hash]string {
	branches, tags := graph.Decorations(repo)

	labels := make(map[gitcore.Hash]string)
	for hash, names := range branches {
		labels[hash] = render.RefLabel(names, tags[hash], color)
	}
	for hash, names := range tags {
		if _, ok := labels[hash]; !ok {
			labels[hash] = render.RefLabel(nil, names, color)
		}
	}
	return labels
}
