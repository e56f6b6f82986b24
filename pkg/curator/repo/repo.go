// Package repo provides the asset library: a Badger-backed index of asset
// metadata records keyed by stable UUID identifiers, with path and type
// lookups, filesystem ingestion, and deferred write-back of dirty entries.
package repo

import (
	"encoding/json"

	"github.com/jamesainslie/curator/pkg/curator/types"
)

// Asset is one library entry: a file or directory known to the index.
type Asset struct {
	ID     types.AssetID   `json:"id"`
	Path   string          `json:"path"`
	Name   string          `json:"name"`
	Type   types.TypeTag   `json:"type"`
	Facets []types.TypeTag `json:"facets,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// HasFacet reports whether the asset carries a facet that is want or a
// subtype of want, per the registry's hierarchy.
func (a *Asset) HasFacet(reg *TypeRegistry, want types.TypeTag) bool {
	for _, f := range a.Facets {
		if reg.IsSubtype(f, want) {
			return true
		}
	}
	return false
}

// Repository is the collaborator surface the sync engine depends on.
// Implementations must tolerate unknown paths and identifiers by returning
// zero values rather than errors; errors are reserved for store failures.
type Repository interface {
	// FindByType returns the identifiers of all entries whose type equals
	// the tag. Order is whatever the store yields, but must be stable for
	// an unchanged store.
	FindByType(tag types.TypeTag) ([]types.AssetID, error)

	// FindByTypeUnder is FindByType restricted to entries located under one
	// of the given directories.
	FindByTypeUnder(tag types.TypeTag, dirs []string) ([]types.AssetID, error)

	// PathForID resolves an identifier to its library path, or "" if the
	// identifier is unknown.
	PathForID(id types.AssetID) (string, error)

	// IDForPath resolves a library path to its identifier, or "" if the
	// path is unknown.
	IDForPath(path string) (types.AssetID, error)

	// Load resolves the entry at path as the given type. It returns
	// (nil, nil) when the path is unknown or the entry cannot be viewed as
	// that type. A bundle loads as a component type when it carries a
	// compatible facet.
	Load(path string, as types.TypeTag) (*Asset, error)

	// TypeOf returns the declared type of the entry at path, or "" if the
	// path is unknown.
	TypeOf(path string) (types.TypeTag, error)

	// StableID returns the entry's stable identifier. ok is false when the
	// entry has none, in which case ordering falls back to name comparison.
	StableID(a *Asset) (types.AssetID, bool)

	// MarkDirty records the asset for the next PersistAll.
	MarkDirty(a *Asset)

	// PersistAll writes every dirty asset back to the store.
	PersistAll() error

	// Types returns the type registry the repository classifies with.
	Types() *TypeRegistry
}
