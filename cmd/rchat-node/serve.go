package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rchat-io/rchat-node/internal/logger"
	"github.com/rchat-io/rchat-node/node"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the node, bringing up the command bridge and, once unlocked, networking",
	Long: `serve starts the node process: the local command bridge and health/
metrics endpoints come up immediately, and the transport, discovery, and
protocol stack start as soon as a UI process unlocks the vault.

serve blocks until interrupted (SIGINT/SIGTERM), then shuts the node down.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	n, err := node.NewNode(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.Start(ctx); err != nil {
		return err
	}
	log.Info("rchat-node: running", logger.String("environment", cfg.Environment))

	<-ctx.Done()
	log.Info("rchat-node: shutting down")
	return n.Stop()
}
