// Package daemon wires the asset library, the filesystem watcher, and the
// sync engine into the curatord process.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jamesainslie/curator/pkg/curator/config"
	"github.com/jamesainslie/curator/pkg/curator/engine"
	"github.com/jamesainslie/curator/pkg/curator/logging"
	"github.com/jamesainslie/curator/pkg/curator/repo"
	"github.com/jamesainslie/curator/pkg/curator/types"
	"github.com/jamesainslie/curator/pkg/daemon/watcher"
)

// Daemon runs the watch-and-resync loop for one library.
type Daemon struct {
	cfg *config.Config
	lib *repo.Library
	eng *engine.Engine
	log *log.Logger
}

// New opens the library store and builds the engine. The caller owns the
// daemon's lifetime and must Close it.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg.LibraryRoot == "" {
		return nil, fmt.Errorf("library_root is not configured")
	}

	if cfg.PIDPath != "" {
		if err := RecoverStale(cfg.PIDPath, cfg.DataDir); err != nil {
			return nil, err
		}
	}

	lib, err := repo.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	eng := engine.New(lib, engine.Config{
		SmallBatchThreshold: cfg.Scan.SmallBatchThreshold,
		Disabled:            func() bool { return cfg.Scan.Disabled },
	})

	return &Daemon{
		cfg: cfg,
		lib: lib,
		eng: eng,
		log: logging.Get("daemon"),
	}, nil
}

// Library exposes the daemon's asset library.
func (d *Daemon) Library() *repo.Library {
	return d.lib
}

// Engine exposes the daemon's sync engine.
func (d *Daemon) Engine() *engine.Engine {
	return d.eng
}

// Run ingests the library root, then watches it until the context is
// cancelled. All batch handling happens on the delivery goroutine; the
// engine and the library's dirty set are never touched concurrently.
func (d *Daemon) Run(ctx context.Context) error {
	if d.cfg.PIDPath != "" {
		if IsRunning(d.cfg.PIDPath) {
			return ErrAlreadyRunning
		}
		if err := WritePIDFile(d.cfg.PIDPath); err != nil {
			return fmt.Errorf("writing pid file: %w", err)
		}
		defer func() { _ = RemovePIDFile(d.cfg.PIDPath) }()
	}

	res, err := d.lib.Ingest(d.cfg.LibraryRoot)
	if err != nil {
		return fmt.Errorf("initial ingest: %w", err)
	}
	d.log.Info("library ingested", "root", res.Root, "indexed", res.Indexed, "took", res.Duration)

	window := time.Duration(d.cfg.Scan.DebounceMS) * time.Millisecond
	w, err := watcher.New(d.cfg.LibraryRoot, window, d.handleBatch)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err := w.Start(); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	d.log.Info("watching library", "root", d.cfg.LibraryRoot)
	w.Run(ctx)
	return ctx.Err()
}

// handleBatch applies one change batch to the library index and then hands
// it to the engine. Move pairs keep their identifiers; unpaired leftovers
// degrade to delete plus import.
func (d *Daemon) handleBatch(batch types.ChangeBatch) {
	root := d.cfg.LibraryRoot

	pairs := min(len(batch.MovedFrom), len(batch.MovedTo))
	for i := 0; i < pairs; i++ {
		if err := d.lib.Rename(batch.MovedFrom[i], batch.MovedTo[i]); err != nil {
			d.log.Error("applying move", "from", batch.MovedFrom[i], "error", err)
		}
	}
	for _, p := range batch.MovedFrom[pairs:] {
		if err := d.lib.DeletePrefix(p); err != nil {
			d.log.Error("applying move source", "path", p, "error", err)
		}
	}
	for _, p := range batch.MovedTo[pairs:] {
		if _, err := d.lib.IngestOne(root, p); err != nil {
			d.log.Error("applying move target", "path", p, "error", err)
		}
	}
	for _, p := range batch.Deleted {
		if err := d.lib.DeletePrefix(p); err != nil {
			d.log.Error("applying delete", "path", p, "error", err)
		}
	}
	for _, p := range batch.Imported {
		if _, err := d.lib.IngestOne(root, p); err != nil {
			d.log.Error("applying import", "path", p, "error", err)
		}
	}

	if err := d.eng.HandleBatch(batch); err != nil {
		d.log.Error("batch handling failed", "error", err)
	}
}

// Close releases the library store.
func (d *Daemon) Close() error {
	return d.lib.Close()
}
