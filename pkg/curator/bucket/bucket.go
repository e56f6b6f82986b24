// Package bucket defines auto-curated collections: named, persisted sets of
// asset references with declarative membership rules. A bucket names the
// directories it draws from, the asset type its members must satisfy, and an
// optional pattern narrowing eligibility further. The sync engine keeps
// bucket members up to date as the library changes.
package bucket

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/gobwas/glob"

	"github.com/jamesainslie/curator/pkg/curator/repo"
	"github.com/jamesainslie/curator/pkg/curator/types"
)

// Bucket kinds. A plain bucket accepts every type-compatible candidate; a
// pattern bucket additionally requires the candidate path to match a glob.
const (
	KindPlain   = "plain"
	KindPattern = "pattern"
)

// definition is the persisted JSON shape of a bucket, stored as the body of
// its backing asset record.
type definition struct {
	Name              string          `json:"name"`
	Kind              string          `json:"kind,omitempty"`
	SourceDirectories []string        `json:"source_directories"`
	TypeFilter        types.TypeTag   `json:"type_filter"`
	ManualUpdate      bool            `json:"manual_update,omitempty"`
	Pattern           string          `json:"pattern,omitempty"`
	Members           []types.AssetID `json:"members"`
}

// Bucket is a materialized collection definition bound to its backing asset
// record. Members is the persisted, ordered content; order is meaningful and
// deterministic across resyncs of identical input.
type Bucket struct {
	Name              string
	Kind              string
	SourceDirectories []string
	TypeFilter        types.TypeTag
	ManualUpdate      bool
	Pattern           string
	Members           []types.AssetID

	src   *repo.Asset
	hooks Hooks
}

// Hooks is the per-kind capability surface the sync engine filters through.
// Implementations narrow eligibility beyond the type filter and source
// directories.
type Hooks interface {
	// IsValidDirectory reports whether a changed directory could affect
	// this bucket's membership.
	IsValidDirectory(dir string) bool

	// IsMissing reports whether the entry at path is not currently a
	// member.
	IsMissing(path string) bool

	// CanAdd reports whether a type-compatible candidate is accepted.
	CanAdd(a *repo.Asset) bool
}

// FromAsset decodes a bucket from its backing asset record and binds the
// kind-specific hooks. The repository is consulted by the hooks for
// path-to-identifier resolution.
func FromAsset(r repo.Repository, a *repo.Asset) (*Bucket, error) {
	var def definition
	if err := json.Unmarshal(a.Body, &def); err != nil {
		return nil, fmt.Errorf("decode bucket %s: %w", a.Path, err)
	}

	b := &Bucket{
		Name:              def.Name,
		Kind:              def.Kind,
		SourceDirectories: def.SourceDirectories,
		TypeFilter:        def.TypeFilter,
		ManualUpdate:      def.ManualUpdate,
		Pattern:           def.Pattern,
		Members:           def.Members,
		src:               a,
	}
	if b.Name == "" {
		b.Name = a.Name
	}
	if b.Kind == "" {
		b.Kind = KindPlain
	}

	switch b.Kind {
	case KindPlain:
		b.hooks = &plainHooks{b: b, repo: r}
	case KindPattern:
		g, err := glob.Compile(b.Pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("bucket %s: bad pattern %q: %w", b.Name, b.Pattern, err)
		}
		b.hooks = &patternHooks{plainHooks: plainHooks{b: b, repo: r}, glob: g}
	default:
		return nil, fmt.Errorf("bucket %s: unknown kind %q", b.Name, b.Kind)
	}

	return b, nil
}

// Hooks returns the bucket's bound capability implementation.
func (b *Bucket) Hooks() Hooks {
	return b.hooks
}

// Commit serializes the current definition back into the backing asset
// record and returns it for dirty-marking.
func (b *Bucket) Commit() (*repo.Asset, error) {
	def := definition{
		Name:              b.Name,
		Kind:              b.Kind,
		SourceDirectories: b.SourceDirectories,
		TypeFilter:        b.TypeFilter,
		ManualUpdate:      b.ManualUpdate,
		Pattern:           b.Pattern,
		Members:           b.Members,
	}
	data, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("encode bucket %s: %w", b.Name, err)
	}
	b.src.Body = data
	return b.src, nil
}

// plainHooks implements the default eligibility rules.
type plainHooks struct {
	b    *Bucket
	repo repo.Repository
}

// IsValidDirectory accepts directories equal to or underneath one of the
// bucket's source directories.
func (h *plainHooks) IsValidDirectory(dir string) bool {
	for _, s := range h.b.SourceDirectories {
		if types.PathWithin(dir, s) {
			return true
		}
	}
	return false
}

// IsMissing reports true when the path does not resolve to a current member.
// Unresolvable paths count as missing; the rescan will sort them out.
func (h *plainHooks) IsMissing(path string) bool {
	id, err := h.repo.IDForPath(path)
	if err != nil || id == "" {
		return true
	}
	return !slices.Contains(h.b.Members, id)
}

// CanAdd accepts every candidate.
func (h *plainHooks) CanAdd(*repo.Asset) bool {
	return true
}

// patternHooks restricts CanAdd to paths matching the bucket's glob.
type patternHooks struct {
	plainHooks
	glob glob.Glob
}

func (h *patternHooks) CanAdd(a *repo.Asset) bool {
	return h.glob.Match(a.Path)
}
