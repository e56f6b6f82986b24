package engine_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/curator/pkg/curator/bucket"
	"github.com/jamesainslie/curator/pkg/curator/engine"
	"github.com/jamesainslie/curator/pkg/curator/repo"
	"github.com/jamesainslie/curator/pkg/curator/types"
)

// fakeRepo is an in-memory Repository for engine tests. Enumeration order
// follows the order assets were added, and can be permuted to exercise
// determinism. duplicateFinds makes every Find result appear twice.
type fakeRepo struct {
	reg    *repo.TypeRegistry
	assets []*repo.Asset

	duplicateFinds bool
	unstable       map[types.AssetID]bool
	loadCalls      int
	persistCalls   int
	dirty          []*repo.Asset
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{reg: repo.NewTypeRegistry()}
}

func (f *fakeRepo) add(id types.AssetID, path string, tag types.TypeTag, facets ...types.TypeTag) *repo.Asset {
	a := &repo.Asset{
		ID:     id,
		Path:   path,
		Name:   types.BaseName(path),
		Type:   tag,
		Facets: facets,
	}
	f.assets = append(f.assets, a)
	return a
}

func (f *fakeRepo) addFolder(path string) {
	f.add(types.AssetID("dir-"+path), path, repo.KindFolder)
}

func (f *fakeRepo) remove(path string) {
	for i, a := range f.assets {
		if types.PathEqual(a.Path, path) {
			f.assets = append(f.assets[:i], f.assets[i+1:]...)
			return
		}
	}
}

func (f *fakeRepo) byPath(path string) *repo.Asset {
	for _, a := range f.assets {
		if types.PathEqual(a.Path, path) {
			return a
		}
	}
	return nil
}

func (f *fakeRepo) FindByType(tag types.TypeTag) ([]types.AssetID, error) {
	return f.FindByTypeUnder(tag, nil)
}

func (f *fakeRepo) FindByTypeUnder(tag types.TypeTag, dirs []string) ([]types.AssetID, error) {
	var ids []types.AssetID
	for _, a := range f.assets {
		if a.Type != tag {
			continue
		}
		if dirs != nil {
			under := false
			for _, d := range dirs {
				if types.PathWithin(a.Path, d) {
					under = true
					break
				}
			}
			if !under {
				continue
			}
		}
		ids = append(ids, a.ID)
		if f.duplicateFinds {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (f *fakeRepo) PathForID(id types.AssetID) (string, error) {
	for _, a := range f.assets {
		if a.ID == id {
			return a.Path, nil
		}
	}
	return "", nil
}

func (f *fakeRepo) IDForPath(path string) (types.AssetID, error) {
	if a := f.byPath(path); a != nil {
		return a.ID, nil
	}
	return "", nil
}

func (f *fakeRepo) Load(path string, as types.TypeTag) (*repo.Asset, error) {
	f.loadCalls++
	a := f.byPath(path)
	if a == nil {
		return nil, nil
	}
	if f.reg.IsSubtype(a.Type, as) {
		return a, nil
	}
	if a.Type == repo.KindBundle && f.reg.IsComponent(as) && a.HasFacet(f.reg, as) {
		return a, nil
	}
	return nil, nil
}

func (f *fakeRepo) TypeOf(path string) (types.TypeTag, error) {
	if a := f.byPath(path); a != nil {
		return a.Type, nil
	}
	return "", nil
}

func (f *fakeRepo) StableID(a *repo.Asset) (types.AssetID, bool) {
	if a == nil || a.ID == "" || f.unstable[a.ID] {
		return "", false
	}
	return a.ID, true
}

func (f *fakeRepo) MarkDirty(a *repo.Asset) {
	f.dirty = append(f.dirty, a)
}

func (f *fakeRepo) PersistAll() error {
	f.persistCalls++
	f.dirty = nil
	return nil
}

func (f *fakeRepo) Types() *repo.TypeRegistry {
	return f.reg
}

// addBucket stores a bucket definition asset and returns its materialization.
func addBucket(t *testing.T, f *fakeRepo, name string, def map[string]any) *bucket.Bucket {
	t.Helper()

	body, err := json.Marshal(def)
	require.NoError(t, err)

	a := f.add(types.AssetID("bucket-"+name), "buckets/"+name+".bucket", repo.KindBucket)
	a.Body = body

	b, err := bucket.FromAsset(f, a)
	require.NoError(t, err)
	return b
}

func textureBucket(t *testing.T, f *fakeRepo, name string, members ...types.AssetID) *bucket.Bucket {
	t.Helper()
	if members == nil {
		members = []types.AssetID{}
	}
	return addBucket(t, f, name, map[string]any{
		"name":               name,
		"source_directories": []string{"art/textures"},
		"type_filter":        "texture",
		"members":            members,
	})
}

func TestResync(t *testing.T) {
	t.Run("is idempotent", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("art/textures")
		f.add("id-a", "art/textures/a.png", repo.KindTexture)
		f.add("id-b", "art/textures/b.png", repo.KindTexture)
		b := textureBucket(t, f, "textures")
		eng := engine.New(f, engine.Config{})

		changed, err := eng.Resync(b, nil, true)
		require.NoError(t, err)
		assert.True(t, changed)
		first := append([]types.AssetID(nil), b.Members...)

		changed, err = eng.Resync(b, nil, true)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, first, b.Members)
	})

	t.Run("orders members deterministically regardless of enumeration order", func(t *testing.T) {
		build := func(paths []string, ids []types.AssetID) []types.AssetID {
			f := newFakeRepo()
			f.addFolder("art/textures")
			for i, p := range paths {
				f.add(ids[i], p, repo.KindTexture)
			}
			b := textureBucket(t, f, "textures")
			eng := engine.New(f, engine.Config{})
			_, err := eng.Resync(b, nil, true)
			require.NoError(t, err)
			return b.Members
		}

		forward := build(
			[]string{"art/textures/x.png", "art/textures/y.png", "art/textures/z.png"},
			[]types.AssetID{"id-3", "id-1", "id-2"},
		)
		reversed := build(
			[]string{"art/textures/z.png", "art/textures/y.png", "art/textures/x.png"},
			[]types.AssetID{"id-2", "id-1", "id-3"},
		)

		assert.Equal(t, []types.AssetID{"id-1", "id-2", "id-3"}, forward)
		assert.Equal(t, forward, reversed)
	})

	t.Run("falls back to name order for entries without stable identifiers", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("art/textures")
		// Identifier order (a, b, c) is the reverse of name order; with no
		// stable identifiers the names must decide, case-insensitively.
		f.add("id-a", "art/textures/Charlie.png", repo.KindTexture)
		f.add("id-b", "art/textures/bravo.png", repo.KindTexture)
		f.add("id-c", "art/textures/Alpha.png", repo.KindTexture)
		f.unstable = map[types.AssetID]bool{"id-a": true, "id-b": true, "id-c": true}
		b := textureBucket(t, f, "textures")
		eng := engine.New(f, engine.Config{})

		changed, err := eng.Resync(b, nil, true)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, []types.AssetID{"id-c", "id-b", "id-a"}, b.Members)
	})

	t.Run("deduplicates repeated identifiers from the query", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("art/textures")
		f.add("id-a", "art/textures/a.png", repo.KindTexture)
		f.duplicateFinds = true
		b := textureBucket(t, f, "textures")
		eng := engine.New(f, engine.Config{})

		changed, err := eng.Resync(b, nil, true)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, []types.AssetID{"id-a"}, b.Members)
	})

	t.Run("suppresses writes when content is equal", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("art/textures")
		f.add("id-a", "art/textures/a.png", repo.KindTexture)
		f.add("id-b", "art/textures/b.png", repo.KindTexture)
		b := textureBucket(t, f, "textures", "id-a", "id-b")
		eng := engine.New(f, engine.Config{})

		changed, err := eng.Resync(b, nil, true)
		require.NoError(t, err)
		assert.False(t, changed)
		require.NoError(t, eng.Scheduler().Flush())
		assert.Zero(t, f.persistCalls)
		assert.Empty(t, f.dirty)
	})

	t.Run("returns false for buckets with no source directories", func(t *testing.T) {
		f := newFakeRepo()
		b := addBucket(t, f, "inert", map[string]any{
			"name":               "inert",
			"source_directories": []string{},
			"type_filter":        "texture",
			"members":            []types.AssetID{},
		})
		eng := engine.New(f, engine.Config{})

		changed, err := eng.Resync(b, nil, true)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("includes bundles carrying a compatible facet for component filters", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("world")
		f.add("id-plain", "world/empty.bundle", repo.KindBundle)
		f.add("id-scripted", "world/scripted.bundle", repo.KindBundle, repo.KindScript)
		b := addBucket(t, f, "scripted", map[string]any{
			"name":               "scripted",
			"source_directories": []string{"world"},
			"type_filter":        "script",
			"members":            []types.AssetID{},
		})
		eng := engine.New(f, engine.Config{})

		changed, err := eng.Resync(b, nil, true)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, []types.AssetID{"id-scripted"}, b.Members)
	})

	t.Run("respects the bucket pattern hook", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("art/textures")
		f.add("id-hd", "art/textures/wall_hd.png", repo.KindTexture)
		f.add("id-sd", "art/textures/wall_sd.png", repo.KindTexture)
		b := addBucket(t, f, "hd", map[string]any{
			"name":               "hd",
			"kind":               "pattern",
			"pattern":            "**_hd.png",
			"source_directories": []string{"art/textures"},
			"type_filter":        "texture",
			"members":            []types.AssetID{},
		})
		eng := engine.New(f, engine.Config{})

		changed, err := eng.Resync(b, nil, true)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, []types.AssetID{"id-hd"}, b.Members)
	})
}

func TestNeedsRescan(t *testing.T) {
	importBatch := func(paths ...string) types.ChangeBatch {
		return types.ChangeBatch{Imported: paths}
	}

	t.Run("nil bucket never rescans", func(t *testing.T) {
		f := newFakeRepo()
		eng := engine.New(f, engine.Config{})
		batch := importBatch("art/textures/a.png")

		need, err := eng.NeedsRescan(nil, batch, engine.BuildClosure(batch.AllPaths()))
		require.NoError(t, err)
		assert.False(t, need)
	})

	t.Run("manual buckets never rescan", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("art/textures")
		f.add("id-a", "art/textures/a.png", repo.KindTexture)
		b := addBucket(t, f, "manual", map[string]any{
			"name":               "manual",
			"source_directories": []string{"art/textures"},
			"type_filter":        "texture",
			"manual_update":      true,
			"members":            []types.AssetID{},
		})
		eng := engine.New(f, engine.Config{})
		batch := importBatch("art/textures/a.png")

		need, err := eng.NeedsRescan(b, batch, engine.BuildClosure(batch.AllPaths()))
		require.NoError(t, err)
		assert.False(t, need)
	})

	t.Run("skips buckets whose directories the batch does not touch", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("a/b")
		b := addBucket(t, f, "ab", map[string]any{
			"name":               "ab",
			"source_directories": []string{"a/b"},
			"type_filter":        "texture",
			"members":            []types.AssetID{},
		})
		eng := engine.New(f, engine.Config{})
		batch := importBatch("c/d/file.png")

		need, err := eng.NeedsRescan(b, batch, engine.BuildClosure(batch.AllPaths()))
		require.NoError(t, err)
		assert.False(t, need)
	})

	t.Run("small import batch of existing members is skipped", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("art/textures")

		var paths []string
		var members []types.AssetID
		for _, n := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
			p := "art/textures/" + n + ".png"
			id := types.AssetID("id-" + n)
			f.add(id, p, repo.KindTexture)
			paths = append(paths, p)
			members = append(members, id)
		}
		b := textureBucket(t, f, "textures", members...)
		eng := engine.New(f, engine.Config{})

		batch := importBatch(paths...)
		need, err := eng.NeedsRescan(b, batch, engine.BuildClosure(batch.AllPaths()))
		require.NoError(t, err)
		assert.False(t, need)

		// One non-member in the batch flips the decision.
		f.add("id-new", "art/textures/new.png", repo.KindTexture)
		batch = importBatch(append(paths, "art/textures/new.png")...)
		need, err = eng.NeedsRescan(b, batch, engine.BuildClosure(batch.AllPaths()))
		require.NoError(t, err)
		assert.True(t, need)
	})

	t.Run("import batch at the threshold always rescans", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("art/textures")

		var paths []string
		var members []types.AssetID
		for i := 0; i < engine.DefaultSmallBatchThreshold; i++ {
			p := "art/textures/" + strings.Repeat("x", i+1) + ".png"
			id := types.AssetID(strings.Repeat("x", i+1))
			f.add(id, p, repo.KindTexture)
			paths = append(paths, p)
			members = append(members, id)
		}
		b := textureBucket(t, f, "textures", members...)
		eng := engine.New(f, engine.Config{})

		batch := importBatch(paths...)
		need, err := eng.NeedsRescan(b, batch, engine.BuildClosure(batch.AllPaths()))
		require.NoError(t, err)
		assert.True(t, need)
	})

	t.Run("deletes force a rescan even for member paths", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("art/textures")
		f.add("id-a", "art/textures/a.png", repo.KindTexture)
		b := textureBucket(t, f, "textures", "id-a")
		eng := engine.New(f, engine.Config{})

		batch := types.ChangeBatch{Deleted: []string{"art/textures/a.png"}}
		need, err := eng.NeedsRescan(b, batch, engine.BuildClosure(batch.AllPaths()))
		require.NoError(t, err)
		assert.True(t, need)
	})
}

func TestHandleBatch(t *testing.T) {
	t.Run("coalesces saves from several buckets into one flush", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("art/textures")
		f.add("id-a", "art/textures/a.png", repo.KindTexture)
		textureBucket(t, f, "one")
		textureBucket(t, f, "two")
		textureBucket(t, f, "three")
		eng := engine.New(f, engine.Config{})

		err := eng.HandleBatch(types.ChangeBatch{Imported: []string{"art/textures/a.png"}})
		require.NoError(t, err)
		assert.Equal(t, 1, f.persistCalls)
	})

	t.Run("ignores batches while scanning is disabled", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("art/textures")
		f.add("id-a", "art/textures/a.png", repo.KindTexture)
		b := textureBucket(t, f, "textures")
		eng := engine.New(f, engine.Config{Disabled: func() bool { return true }})

		err := eng.HandleBatch(types.ChangeBatch{Imported: []string{"art/textures/a.png"}})
		require.NoError(t, err)
		assert.Empty(t, b.Members)
		assert.Zero(t, f.persistCalls)
	})

	t.Run("unaffected buckets register no writes", func(t *testing.T) {
		f := newFakeRepo()
		f.addFolder("art/textures")
		f.addFolder("audio")
		f.add("id-a", "art/textures/a.png", repo.KindTexture)
		f.add("id-s", "audio/door.wav", repo.KindAudio)
		textureBucket(t, f, "textures")
		soundsBody, err := json.Marshal(map[string]any{
			"name":               "sounds",
			"source_directories": []string{"audio"},
			"type_filter":        "audio",
			"members":            []types.AssetID{"id-s"},
		})
		require.NoError(t, err)
		sounds := f.add("bucket-sounds", "buckets/sounds.bucket", repo.KindBucket)
		sounds.Body = soundsBody
		eng := engine.New(f, engine.Config{})

		err = eng.HandleBatch(types.ChangeBatch{Imported: []string{"art/textures/a.png"}})
		require.NoError(t, err)

		// The affected bucket was committed with its new member; the
		// unaffected one was never rewritten.
		require.Len(t, f.dirty, 0) // flushed
		assert.Equal(t, 1, f.persistCalls)
		var def struct {
			Members []types.AssetID `json:"members"`
		}
		require.NoError(t, json.Unmarshal(f.byPath("buckets/textures.bucket").Body, &def))
		assert.Equal(t, []types.AssetID{"id-a"}, def.Members)
		assert.JSONEq(t, string(soundsBody), string(sounds.Body))
	})
}
