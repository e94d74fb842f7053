package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"inboxsync/internal/config"
	"inboxsync/internal/daemon"
	"inboxsync/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the sync daemon with startup and interval syncs",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	if err := requireValidConfig(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	manager, closeLedger, err := daemon.NewFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	manager.Start(runCtx)

	config.Watch(manager.Reconfigure, func(err error) {
		logger.Log.Warn("config change ignored", zap.Error(err))
	})

	srv := daemon.NewServer(manager, cfg.DaemonPort)
	srv.Start()

	logger.Log.Info("inboxsync daemon started",
		zap.String("repository", cfg.GitHub.Repository),
		zap.String("vault", cfg.VaultPath),
		zap.Int("port", cfg.DaemonPort))

	select {
	case <-ctx.Done():
		logger.Log.Info("shutting down", zap.String("reason", "signal"))
	case <-srv.StopCh():
		logger.Log.Info("stop requested via API")
	}

	// A running sync stops between files and still saves the ledger before
	// closeLedger runs.
	cancelRun()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
