// Command signalctl operates the signal digest pipeline from the shell: it
// runs ingestion, applies the schema and manages sources.
//
// Usage:
//
//	signalctl run [--date 2025-03-14] [--max-items 60]
//	signalctl migrate
//	signalctl sources list|add|test
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/logger"
)

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "signalctl",
		Short:         "Operate the signal digest pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "configs/development.yaml", "path to config file")

	root.AddCommand(runCMD(&cfgPath), migrateCMD(&cfgPath), sourcesCMD(&cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		var exit exitError
		if !asExit(err, &exit) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// withApp loads configuration, builds the pipeline and hands it to fn.
func withApp(ctx context.Context, cfgPath string, fn func(ctx context.Context, cfg *config.Config, app *bootstrap.App) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	app, err := bootstrap.New(cfg, nil)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, cfg, app)
}
