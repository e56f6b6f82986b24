package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/curator/pkg/curator/logging"
	"github.com/jamesainslie/curator/pkg/curator/repo"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show library statistics and disk usage",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()

	lib, err := repo.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()

	buckets, err := lib.FindByType(repo.KindBucket)
	if err != nil {
		return err
	}
	folders, err := lib.FindByType(repo.KindFolder)
	if err != nil {
		return err
	}

	fmt.Printf("Library root: %s\n", cfg.LibraryRoot)
	fmt.Printf("Store:        %s\n", cfg.DataDir)
	fmt.Printf("Buckets:      %d\n", len(buckets))
	fmt.Printf("Folders:      %d\n", len(folders))

	if free, total, err := diskUsage(cfg.DataDir); err == nil {
		fmt.Printf("Disk:         %s free of %s\n",
			humanize.IBytes(free), humanize.IBytes(total))
	}
	return nil
}
