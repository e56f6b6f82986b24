package engine

import (
	"slices"

	"github.com/jamesainslie/curator/pkg/curator/bucket"
	"github.com/jamesainslie/curator/pkg/curator/logging"
	"github.com/jamesainslie/curator/pkg/curator/repo"
	"github.com/jamesainslie/curator/pkg/curator/types"
)

// Registry discovers and caches the bucket set. Materializing buckets means
// loading and decoding their backing records, so the cache is rebuilt only
// when the identity list returned by the repository differs from the last
// observation; otherwise the previously materialized buckets are reused.
type Registry struct {
	repo    repo.Repository
	ids     []types.AssetID
	buckets []*bucket.Bucket
}

// NewRegistry returns an empty registry over the repository. The cache fills
// lazily on first use.
func NewRegistry(r repo.Repository) *Registry {
	return &Registry{repo: r}
}

// Buckets returns the current bucket set, reusing the cached materialization
// when the repository's bucket identity list is unchanged.
func (r *Registry) Buckets() ([]*bucket.Bucket, error) {
	ids, err := r.repo.FindByType(repo.KindBucket)
	if err != nil {
		return nil, err
	}

	if r.buckets != nil && slices.Equal(ids, r.ids) {
		return r.buckets, nil
	}

	buckets := make([]*bucket.Bucket, 0, len(ids))
	for _, id := range ids {
		path, err := r.repo.PathForID(id)
		if err != nil {
			return nil, err
		}
		if path == "" {
			continue
		}
		a, err := r.repo.Load(path, repo.KindBucket)
		if err != nil {
			return nil, err
		}
		if a == nil {
			continue
		}
		b, err := bucket.FromAsset(r.repo, a)
		if err != nil {
			// A malformed definition must not stall every other bucket.
			logging.Get("engine").Warn("skipping malformed bucket", "path", path, "error", err)
			continue
		}
		buckets = append(buckets, b)
	}

	r.ids = ids
	r.buckets = buckets
	return buckets, nil
}

// Invalidate drops the cache; the next Buckets call rebuilds it.
func (r *Registry) Invalidate() {
	r.ids = nil
	r.buckets = nil
}
