package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/curator/pkg/curator/logging"
	"github.com/jamesainslie/curator/pkg/curator/repo"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index or re-index the library root",
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()

	if cfg.LibraryRoot == "" {
		return fmt.Errorf("library_root is not configured (use --library)")
	}

	lib, err := repo.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()

	res, err := lib.Ingest(cfg.LibraryRoot)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d entries under %s (%d skipped) in %s\n",
		res.Indexed, res.Root, res.Skipped, res.Duration.Round(1e6))
	return nil
}
