// Package types provides core data types for the curator asset library:
// type tags, stable asset identifiers, and the change batches delivered by
// the filesystem watcher.
package types

import (
	"path"
	"strings"
)

// TypeTag identifies an asset kind (e.g. "texture", "script", "bundle").
// Tags form a subtype hierarchy managed by the repository's type registry.
type TypeTag string

// AssetID is the stable identifier of a library entry. It is a UUID string
// minted at ingest time and preserved across re-ingests of the same path,
// so it survives renames of the display name and is independent of location.
type AssetID string

// ChangeBatch describes the filesystem-level changes observed since the
// previous batch. The four sequences are disjoint; paths are
// library-relative with forward slashes. A batch is produced once, consumed
// once, and never mutated after delivery.
type ChangeBatch struct {
	Imported  []string
	Deleted   []string
	MovedFrom []string
	MovedTo   []string
}

// Empty reports whether the batch carries no changes at all.
func (b ChangeBatch) Empty() bool {
	return len(b.Imported) == 0 && len(b.Deleted) == 0 &&
		len(b.MovedFrom) == 0 && len(b.MovedTo) == 0
}

// AllPaths returns every path in the batch, in field order. The result is a
// fresh slice safe for the caller to modify.
func (b ChangeBatch) AllPaths() []string {
	out := make([]string, 0, len(b.Imported)+len(b.Deleted)+len(b.MovedFrom)+len(b.MovedTo))
	out = append(out, b.Imported...)
	out = append(out, b.Deleted...)
	out = append(out, b.MovedFrom...)
	out = append(out, b.MovedTo...)
	return out
}

// NormalizePath converts an OS path fragment into canonical library form:
// forward slashes, no leading or trailing slash, "." collapsed away.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// PathEqual compares two library paths case-insensitively.
func PathEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// PathWithin reports whether p is equal to dir or located underneath it,
// case-insensitively. An empty dir matches nothing.
func PathWithin(p, dir string) bool {
	if dir == "" {
		return false
	}
	if strings.EqualFold(p, dir) {
		return true
	}
	if len(p) <= len(dir) {
		return false
	}
	return strings.EqualFold(p[:len(dir)], dir) && p[len(dir)] == '/'
}

// BaseName returns the final segment of a library path, used as the entry's
// display name when sorting falls back to name comparison.
func BaseName(p string) string {
	return path.Base(p)
}
