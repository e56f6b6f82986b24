package repo

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/google/uuid"

	"github.com/jamesainslie/curator/pkg/curator/types"
)

// ingestBatchSize is how many records accumulate before a batch write.
const ingestBatchSize = 500

// extTags maps file extensions to asset kinds. Files with unlisted
// extensions are not indexed.
var extTags = map[string]types.TypeTag{
	".png":      KindTexture,
	".jpg":      KindTexture,
	".jpeg":     KindTexture,
	".tga":      KindTexture,
	".wav":      KindAudio,
	".ogg":      KindAudio,
	".mp3":      KindAudio,
	".fbx":      KindModel,
	".obj":      KindModel,
	".gltf":     KindModel,
	".mat":      KindMaterial,
	".lua":      KindScript,
	".bundle":   KindBundle,
	".bucket":   KindBucket,
	".collider": KindCollider,
	".emitter":  KindEmitter,
}

// ClassifyPath returns the asset kind for a library path, or "" when the
// path is not an indexable asset.
func ClassifyPath(p string, isDir bool) types.TypeTag {
	if isDir {
		return KindFolder
	}
	return extTags[strings.ToLower(filepath.Ext(p))]
}

// bundleManifest is the on-disk shape of a .bundle file.
type bundleManifest struct {
	Facets []types.TypeTag `json:"facets"`
}

// IngestResult summarizes one ingest pass.
type IngestResult struct {
	Root     string
	Indexed  int64
	Skipped  int64
	Duration time.Duration
}

// Ingest walks the filesystem tree at root and upserts a record for every
// classifiable entry, keeping existing identifiers stable across passes.
// Unreadable entries are skipped, not fatal.
func (l *Library) Ingest(root string) (*IngestResult, error) {
	start := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	res := &IngestResult{Root: absRoot}
	var batch []*Asset

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, absRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			res.Skipped++
			return nil //nolint:nilerr // skip unreadable entries and keep walking
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, p)
		if relErr != nil || rel == "." {
			return nil
		}
		libPath := types.NormalizePath(rel)

		a, aErr := l.assetForFile(absRoot, libPath, d.IsDir())
		if aErr != nil {
			return aErr
		}
		if a == nil {
			res.Skipped++
			return nil
		}

		batch = append(batch, a)
		res.Indexed++
		if len(batch) >= ingestBatchSize {
			flush := batch
			batch = nil
			return l.PutBatch(flush)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(batch) > 0 {
		if err := l.PutBatch(batch); err != nil {
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	return res, nil
}

// IngestOne upserts the record for a single library path, reading the file
// under root. It returns the stored asset, or nil when the path is not
// classifiable.
func (l *Library) IngestOne(root, libPath string) (*Asset, error) {
	fi, err := os.Lstat(filepath.Join(root, filepath.FromSlash(libPath)))
	if err != nil {
		return nil, nil // vanished between event and handling
	}

	a, err := l.assetForFile(root, libPath, fi.IsDir())
	if err != nil || a == nil {
		return nil, err
	}
	if err := l.Put(a); err != nil {
		return nil, err
	}
	return a, nil
}

// assetForFile builds the record for libPath, reusing the identifier of any
// existing record at that path so identity survives re-ingest.
func (l *Library) assetForFile(root, libPath string, isDir bool) (*Asset, error) {
	tag := ClassifyPath(libPath, isDir)
	if tag == "" {
		return nil, nil
	}

	a := &Asset{
		Path: libPath,
		Name: types.BaseName(libPath),
		Type: tag,
	}

	if prev, err := l.Lookup(libPath); err != nil {
		return nil, err
	} else if prev != nil {
		a.ID = prev.ID
	} else {
		a.ID = types.AssetID(uuid.NewString())
	}

	switch tag {
	case KindBundle:
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(libPath)))
		if err != nil {
			return nil, nil // unreadable manifest, skip
		}
		var m bundleManifest
		if json.Unmarshal(data, &m) == nil {
			a.Facets = m.Facets
		}
	case KindBucket:
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(libPath)))
		if err != nil {
			return nil, nil
		}
		a.Body = data
	}

	return a, nil
}
