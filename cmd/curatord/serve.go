package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/curator/pkg/curator/logging"
	"github.com/jamesainslie/curator/pkg/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the library and keep buckets synchronized",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
