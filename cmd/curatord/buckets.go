package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/curator/pkg/curator/bucket"
	"github.com/jamesainslie/curator/pkg/curator/engine"
	"github.com/jamesainslie/curator/pkg/curator/logging"
	"github.com/jamesainslie/curator/pkg/curator/repo"
	"github.com/jamesainslie/curator/pkg/curator/types"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Inspect and resynchronize buckets",
}

var bucketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List buckets with their filters and member counts",
	RunE:  runBucketsList,
}

var bucketsSyncCmd = &cobra.Command{
	Use:   "sync [name]",
	Short: "Force a full resync of one bucket, or all buckets",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBucketsSync,
}

var bucketsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a bucket definition in the library and sync it",
	Args:  cobra.ExactArgs(1),
	RunE:  runBucketsAdd,
}

func init() {
	bucketsAddCmd.Flags().String("filter", "", "asset type members must satisfy (required)")
	bucketsAddCmd.Flags().StringSlice("source", nil, "source directory, repeatable (required)")
	bucketsAddCmd.Flags().String("pattern", "", "glob narrowing eligible paths")
	bucketsAddCmd.Flags().Bool("manual", false, "exclude from automatic resync")
	_ = bucketsAddCmd.MarkFlagRequired("filter")
	_ = bucketsAddCmd.MarkFlagRequired("source")

	bucketsCmd.AddCommand(bucketsListCmd)
	bucketsCmd.AddCommand(bucketsSyncCmd)
	bucketsCmd.AddCommand(bucketsAddCmd)
	rootCmd.AddCommand(bucketsCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	manualStyle = lipgloss.NewStyle().Faint(true)
)

func openEngine() (*repo.Library, *engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	lib, err := repo.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(lib, engine.Config{
		SmallBatchThreshold: cfg.Scan.SmallBatchThreshold,
	})
	return lib, eng, nil
}

func runBucketsList(cmd *cobra.Command, args []string) error {
	lib, eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()
	defer func() { _ = logging.Close() }()

	buckets, err := eng.Registry().Buckets()
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-20s %-10s %-8s %s", "NAME", "FILTER", "MEMBERS", "SOURCES")))
	for _, b := range buckets {
		line := fmt.Sprintf("%-20s %-10s %-8d %s",
			b.Name, b.TypeFilter, len(b.Members), strings.Join(b.SourceDirectories, ", "))
		if b.ManualUpdate {
			line = manualStyle.Render(line + "  (manual)")
		}
		fmt.Println(line)
	}
	return nil
}

func runBucketsSync(cmd *cobra.Command, args []string) error {
	lib, eng, err := openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()
	defer func() { _ = logging.Close() }()

	buckets, err := eng.Registry().Buckets()
	if err != nil {
		return err
	}

	var name string
	if len(args) == 1 {
		name = args[0]
	}

	matched := false
	for _, b := range buckets {
		if name != "" && b.Name != name {
			continue
		}
		matched = true
		changed, err := eng.Resync(b, nil, false)
		if err != nil {
			return fmt.Errorf("resync %s: %w", b.Name, err)
		}
		fmt.Printf("%s: %d members (changed=%v)\n", b.Name, len(b.Members), changed)
	}
	if name != "" && !matched {
		return fmt.Errorf("no bucket named %q", name)
	}

	return eng.Scheduler().Flush()
}

func runBucketsAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()

	if cfg.LibraryRoot == "" {
		return fmt.Errorf("library_root is not configured (use --library)")
	}

	name := args[0]
	filter, _ := cmd.Flags().GetString("filter")
	sources, _ := cmd.Flags().GetStringSlice("source")
	pattern, _ := cmd.Flags().GetString("pattern")
	manual, _ := cmd.Flags().GetBool("manual")

	for i, s := range sources {
		sources[i] = types.NormalizePath(s)
	}

	kind := bucket.KindPlain
	if pattern != "" {
		kind = bucket.KindPattern
	}
	def := map[string]any{
		"name":               name,
		"kind":               kind,
		"source_directories": sources,
		"type_filter":        filter,
		"manual_update":      manual,
		"members":            []string{},
	}
	if pattern != "" {
		def["pattern"] = pattern
	}
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return err
	}

	rel := "buckets/" + name + ".bucket"
	full := filepath.Join(cfg.LibraryRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(full); err == nil {
		return fmt.Errorf("bucket %q already exists", name)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return err
	}

	lib, err := repo.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()

	if _, err := lib.IngestOne(cfg.LibraryRoot, rel); err != nil {
		return err
	}

	eng := engine.New(lib, engine.Config{SmallBatchThreshold: cfg.Scan.SmallBatchThreshold})
	buckets, err := eng.Registry().Buckets()
	if err != nil {
		return err
	}
	for _, b := range buckets {
		if b.Name != name {
			continue
		}
		if _, err := eng.Resync(b, nil, false); err != nil {
			return fmt.Errorf("resync %s: %w", name, err)
		}
		fmt.Printf("%s: %d members\n", b.Name, len(b.Members))
	}

	return eng.Scheduler().Flush()
}
