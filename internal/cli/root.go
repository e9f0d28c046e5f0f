// Package cli implements the gitlanes command-line interface.
//
// Commands:
//   - log: render the commit graph in the terminal
//   - serve: serve the graph over HTTP/WebSocket with live updates
//   - status: show the working tree status (mimics `git status -s`)
//
// All commands support --verbose (-v) for debug-level logging and --repo to
// point at a repository other than the current directory. Loggers are passed
// through context.Context.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/AntonyCanut/gitlanes/internal/config"
	"github.com/AntonyCanut/gitlanes/internal/gitcore"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion sets the version information displayed by --version, typically
// injected via ldflags at build time.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the gitlanes CLI and returns an error if any command fails.
func Execute() error {
	var (
		verbose    bool
		repoPath   string
		configPath string
	)

	root := &cobra.Command{
		Use:          "gitlanes",
		Short:        "gitlanes visualizes git history as a multi-lane commit graph",
		Long:         `gitlanes reads a git repository's object database directly (no git binary required) and lays its history out as a multi-lane graph, rendered in the terminal or served live over HTTP.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			logger := newLogger(os.Stderr, level)
			charmlog.SetDefault(logger)
			cmd.SetContext(withLogger(cmd.Context(), logger))
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("gitlanes %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&repoPath, "repo", ".", "path to the git repository")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a gitlanes config file")

	root.AddCommand(newLogCmd(&repoPath, &configPath))
	root.AddCommand(newServeCmd(&repoPath, &configPath))
	root.AddCommand(newStatusCmd(&repoPath))

	return root.ExecuteContext(context.Background())
}

// openRepository opens the repository at path, accepting the working
// directory, the .git directory itself, or any parent of either.
func openRepository(path string) (*gitcore.Repository, error) {
	repo, err := gitcore.NewRepository(path)
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	return repo, nil
}

// loadConfig resolves the effective configuration: an explicit --config path
// must exist; otherwise .gitlanes.toml next to the repository is optional.
func loadConfig(configPath string, repo *gitcore.Repository) (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath, true)
	}
	return config.Load(filepath.Join(repo.WorkDir(), config.DefaultFileName), false)
}
