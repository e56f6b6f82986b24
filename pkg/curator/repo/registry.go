package repo

import "github.com/jamesainslie/curator/pkg/curator/types"

// Built-in asset kinds. KindBundle is the composite container kind: a bundle
// groups component facets and is the addressable unit for component-typed
// searches.
const (
	KindFolder   types.TypeTag = "folder"
	KindBundle   types.TypeTag = "bundle"
	KindBucket   types.TypeTag = "bucket"
	KindTexture  types.TypeTag = "texture"
	KindImage    types.TypeTag = "image"
	KindAudio    types.TypeTag = "audio"
	KindModel    types.TypeTag = "model"
	KindMaterial types.TypeTag = "material"
	KindScript   types.TypeTag = "script"
	KindCollider types.TypeTag = "collider"
	KindEmitter  types.TypeTag = "emitter"
)

// TypeRegistry holds the subtype hierarchy and the set of component kinds.
// Subtyping is structural and single-parent: a tag is a subtype of another
// if walking its parent chain reaches it. Component kinds are the tags that
// may appear as facets on a bundle.
type TypeRegistry struct {
	parents    map[types.TypeTag]types.TypeTag
	components map[types.TypeTag]bool
}

// NewTypeRegistry returns a registry seeded with the built-in kinds.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{
		parents:    make(map[types.TypeTag]types.TypeTag),
		components: make(map[types.TypeTag]bool),
	}
	r.Register(KindFolder, "")
	r.Register(KindBundle, "")
	r.Register(KindBucket, "")
	r.Register(KindImage, "")
	r.Register(KindTexture, KindImage)
	r.Register(KindAudio, "")
	r.Register(KindModel, "")
	r.Register(KindMaterial, "")
	r.RegisterComponent(KindScript, "")
	r.RegisterComponent(KindCollider, "")
	r.RegisterComponent(KindEmitter, "")
	return r
}

// Register adds a tag with an optional parent tag.
func (r *TypeRegistry) Register(tag, parent types.TypeTag) {
	r.parents[tag] = parent
}

// RegisterComponent adds a component kind with an optional parent tag.
func (r *TypeRegistry) RegisterComponent(tag, parent types.TypeTag) {
	r.parents[tag] = parent
	r.components[tag] = true
}

// Known reports whether the tag has been registered.
func (r *TypeRegistry) Known(tag types.TypeTag) bool {
	_, ok := r.parents[tag]
	return ok
}

// IsComponent reports whether the tag is an attachable component kind.
func (r *TypeRegistry) IsComponent(tag types.TypeTag) bool {
	return r.components[tag]
}

// IsSubtype reports whether tag equals ancestor or reaches it through its
// parent chain.
func (r *TypeRegistry) IsSubtype(tag, ancestor types.TypeTag) bool {
	if tag == "" || ancestor == "" {
		return false
	}
	for t := tag; t != ""; {
		if t == ancestor {
			return true
		}
		next, ok := r.parents[t]
		if !ok {
			return false
		}
		t = next
	}
	return false
}
