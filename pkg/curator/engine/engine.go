// Package engine implements change-driven bucket resynchronization. A batch
// of filesystem changes is reduced to its directory closure, each bucket is
// cheaply tested for possible impact, and only the affected buckets are
// rescanned. Rescans are idempotent and deterministic: unchanged buckets
// register no writes, and member order is a total order over stable
// identifiers. All engine state is confined to the goroutine delivering
// change batches; no internal locking is used.
package engine

import (
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jamesainslie/curator/pkg/curator/bucket"
	"github.com/jamesainslie/curator/pkg/curator/logging"
	"github.com/jamesainslie/curator/pkg/curator/repo"
	"github.com/jamesainslie/curator/pkg/curator/types"
)

// DefaultSmallBatchThreshold is the import-batch size at and above which a
// full rescan is always performed. Below it, a pure-addition batch is first
// checked member-by-member; per-path membership checks cost more than a
// rescan once batches get large. Policy constant from the originating
// system, overridable via Config.
const DefaultSmallBatchThreshold = 50

// Config tunes the engine.
type Config struct {
	// SmallBatchThreshold overrides DefaultSmallBatchThreshold when > 0.
	SmallBatchThreshold int

	// Disabled, when non-nil and returning true, makes the engine ignore
	// the entire batch. Checked once per batch.
	Disabled func() bool
}

// Engine drives bucket resynchronization against a repository.
type Engine struct {
	repo      repo.Repository
	registry  *Registry
	sched     *SaveScheduler
	threshold int
	disabled  func() bool
	log       *log.Logger
}

// New creates an engine over the repository with its own registry and save
// scheduler.
func New(r repo.Repository, cfg Config) *Engine {
	threshold := cfg.SmallBatchThreshold
	if threshold <= 0 {
		threshold = DefaultSmallBatchThreshold
	}

	return &Engine{
		repo:      r,
		registry:  NewRegistry(r),
		sched:     NewSaveScheduler(r.PersistAll),
		threshold: threshold,
		disabled:  cfg.Disabled,
		log:       logging.Get("engine"),
	}
}

// Registry exposes the engine's bucket registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Scheduler exposes the engine's save scheduler.
func (e *Engine) Scheduler() *SaveScheduler {
	return e.sched
}

// HandleBatch processes one change batch: computes the directory closure,
// rescans every bucket the batch could plausibly affect, and flushes pending
// saves exactly once. Repository errors abort the remaining buckets but do
// not roll back buckets already committed; the flush still runs so committed
// work is persisted.
func (e *Engine) HandleBatch(batch types.ChangeBatch) (err error) {
	if e.disabled != nil && e.disabled() {
		return nil
	}
	if batch.Empty() {
		return nil
	}

	closure := BuildClosure(batch.AllPaths())

	buckets, err := e.registry.Buckets()
	if err != nil {
		return err
	}

	defer func() {
		if ferr := e.sched.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}()

	for _, b := range buckets {
		need, nerr := e.NeedsRescan(b, batch, closure)
		if nerr != nil {
			return nerr
		}
		if !need {
			continue
		}
		if _, rerr := e.Resync(b, nil, true); rerr != nil {
			return rerr
		}
	}

	return nil
}

// NeedsRescan decides whether the batch could plausibly alter the bucket's
// membership. The checks short-circuit in fixed order: unresolved or
// manual-update buckets never rescan; a batch whose directory closure does
// not touch the bucket's directories never rescans; and a small pure-import
// batch rescans only if it brings at least one path that is not already a
// member. Any move or delete, or an import batch at the threshold or above,
// forces a rescan.
func (e *Engine) NeedsRescan(b *bucket.Bucket, batch types.ChangeBatch, closure DirSet) (bool, error) {
	if b == nil {
		return false, nil
	}
	if b.ManualUpdate {
		return false, nil
	}

	sources, err := e.resolveSources(b)
	if err != nil {
		return false, err
	}
	if len(sources) == 0 {
		return false, nil
	}

	hooks := b.Hooks()
	overlap := false
	for dir := range closure {
		if hooks.IsValidDirectory(dir) {
			overlap = true
			break
		}
	}
	if !overlap {
		return false, nil
	}

	pureImport := len(batch.MovedFrom) == 0 && len(batch.MovedTo) == 0 && len(batch.Deleted) == 0
	if pureImport && len(batch.Imported) < e.threshold {
		for _, p := range batch.Imported {
			if hooks.IsMissing(p) {
				return true, nil
			}
		}
		return false, nil
	}

	return true, nil
}

// Resync performs the authoritative resynchronization of one bucket:
// enumerate candidates under the source directories, filter by type
// compatibility and the bucket's hooks, and replace the member list if it
// differs. With skipIfUnchanged set, an identical result leaves the bucket
// untouched and reports changed = false. sources may be nil to resolve them
// from the bucket's definition. Repository errors propagate; the bucket is
// mutated only on full success.
func (e *Engine) Resync(b *bucket.Bucket, sources []string, skipIfUnchanged bool) (bool, error) {
	if b == nil {
		return false, nil
	}

	var err error
	if sources == nil {
		sources, err = e.resolveSources(b)
		if err != nil {
			return false, err
		}
	}
	if len(sources) == 0 {
		return false, nil
	}

	reg := e.repo.Types()

	// Component-typed buckets are populated through bundles: search for the
	// container kind and let per-candidate loading decide.
	searchTag := b.TypeFilter
	if reg.IsComponent(searchTag) {
		searchTag = repo.KindBundle
	}

	ids, err := e.repo.FindByTypeUnder(searchTag, sources)
	if err != nil {
		return false, err
	}
	ids = dedupe(ids)
	slices.Sort(ids)

	hooks := b.Hooks()
	survivors := make([]*repo.Asset, 0, len(ids))
	for _, id := range ids {
		path, err := e.repo.PathForID(id)
		if err != nil {
			return false, err
		}
		if path == "" {
			continue
		}
		a, err := e.repo.Load(path, b.TypeFilter)
		if err != nil {
			return false, err
		}
		if a == nil {
			continue
		}
		t, err := e.repo.TypeOf(path)
		if err != nil {
			return false, err
		}
		if !Compatible(reg, t, b.TypeFilter) {
			continue
		}
		if !hooks.CanAdd(a) {
			continue
		}
		survivors = append(survivors, a)
	}

	e.sortCandidates(survivors)

	newMembers := make([]types.AssetID, len(survivors))
	for i, a := range survivors {
		newMembers[i] = a.ID
	}

	if skipIfUnchanged && slices.Equal(newMembers, b.Members) {
		return false, nil
	}

	b.Members = newMembers
	src, err := b.Commit()
	if err != nil {
		return false, err
	}
	e.repo.MarkDirty(src)
	e.sched.RequestSave()
	e.log.Info("bucket resynchronized", "bucket", b.Name, "members", len(newMembers))
	return true, nil
}

// resolveSources returns the bucket's source directories that still resolve
// to live entries, in declaration order.
func (e *Engine) resolveSources(b *bucket.Bucket) ([]string, error) {
	out := make([]string, 0, len(b.SourceDirectories))
	for _, d := range b.SourceDirectories {
		tag, err := e.repo.TypeOf(d)
		if err != nil {
			return nil, err
		}
		if tag == "" {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// sortCandidates fixes the deterministic member order: stable identifier
// ascending, falling back to case-insensitive name comparison when either
// side has no identifier.
func (e *Engine) sortCandidates(assets []*repo.Asset) {
	slices.SortStableFunc(assets, func(x, y *repo.Asset) int {
		xid, xok := e.repo.StableID(x)
		yid, yok := e.repo.StableID(y)
		if xok && yok {
			return strings.Compare(string(xid), string(yid))
		}
		return strings.Compare(strings.ToLower(x.Name), strings.ToLower(y.Name))
	})
}

// dedupe removes repeated identifiers, keeping first occurrences.
func dedupe(ids []types.AssetID) []types.AssetID {
	seen := make(map[types.AssetID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
