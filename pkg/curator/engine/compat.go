package engine

import (
	"github.com/jamesainslie/curator/pkg/curator/repo"
	"github.com/jamesainslie/curator/pkg/curator/types"
)

// Compatible decides whether a candidate of the given type satisfies a
// bucket's type filter. True when the candidate type equals the filter or is
// a structural subtype of it. Additionally, a bundle candidate satisfies any
// component-kind filter: buckets filter by component type while candidates
// are addressed via their owning bundle. The rule is one-directional; a
// component candidate never satisfies a bundle filter this way.
func Compatible(reg *repo.TypeRegistry, candidate, filter types.TypeTag) bool {
	if candidate == "" {
		return false
	}
	if reg.IsSubtype(candidate, filter) {
		return true
	}
	return candidate == repo.KindBundle && reg.IsComponent(filter)
}
