package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AntonyCanut/gitlanes/internal/graph"
	"github.com/AntonyCanut/gitlanes/internal/server"
)

// newServeCmd serves the graph over HTTP/WebSocket with live updates.
func newServeCmd(repoPath, configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the commit graph over HTTP with live WebSocket updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			repo, err := openRepository(*repoPath)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(*configPath, repo)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			opts := graph.Options{
				PaletteSize: cfg.Graph.PaletteSize,
				MaxCommits:  cfg.Graph.MaxCommits,
			}
			srv := server.NewServer(repo, addr, logger, opts, cfg.Server.PollInterval.Duration)

			// Stop cleanly on SIGINT/SIGTERM so clients see the close frame.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				logger.Info("shutting down")
				srv.Stop()
			}()

			return srv.Start()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
