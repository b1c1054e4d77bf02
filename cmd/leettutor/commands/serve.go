package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codecoach/leettutor/internal/catalog"
	"github.com/codecoach/leettutor/internal/config"
	"github.com/codecoach/leettutor/internal/logging"
	"github.com/codecoach/leettutor/internal/registry"
	"github.com/codecoach/leettutor/internal/sandbox"
	"github.com/codecoach/leettutor/internal/server"
	"github.com/codecoach/leettutor/internal/sessionlog"
)

var (
	serveDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the LeetTutor HTTP + WebSocket server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Project-local config directory (optional)")
}

func runServe(cmd *cobra.Command, args []string) error {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	cfg, err := config.Load(serveDir)
	if err != nil {
		return err
	}

	catalogDir := cfg.CatalogDir
	if catalogDir == "" {
		catalogDir = paths.Catalog
	}
	cat, err := catalog.Load(catalogDir)
	if err != nil {
		return err
	}
	if err := cat.Watch(); err != nil {
		logging.Warn().Err(err).Msg("catalog watch not started")
	}
	defer cat.Close()

	exec := sandbox.New(cfg.SandboxPython)
	logs := sessionlog.New(paths.Sessions)
	reg := registry.New()

	serverCfg := server.DefaultConfig()
	serverCfg.Host = cfg.Host
	serverCfg.Port = cfg.Port
	serverCfg.CorsOrigins = cfg.CorsOrigins

	srv := server.New(serverCfg, cat, exec, logs, reg, cfg.Password, cfg.TutorAgentBinary, paths.Workspace)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
	return nil
}
