package engine

import "strings"

// DirSet is a set of library directory paths with case-insensitive
// membership. Keys are stored lowercased.
type DirSet map[string]struct{}

// Contains reports whether dir is in the set, ignoring case.
func (s DirSet) Contains(dir string) bool {
	_, ok := s[strings.ToLower(dir)]
	return ok
}

// Paths returns the set's members (lowercased), in no particular order.
func (s DirSet) Paths() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	return out
}

// BuildClosure computes the set of all ancestor directories of the given
// paths: for each path, every parent up to the library root. The empty
// string is never added. Pure function; output order is unspecified.
func BuildClosure(paths []string) DirSet {
	out := make(DirSet)
	for _, p := range paths {
		out.addAncestors(p)
	}
	return out
}

// addAncestors walks p's parent chain into the set, stopping at the root or
// at the first parent already present.
func (s DirSet) addAncestors(p string) {
	for {
		i := strings.LastIndexByte(p, '/')
		if i <= 0 {
			return
		}
		p = p[:i]
		key := strings.ToLower(p)
		if _, ok := s[key]; ok {
			return
		}
		s[key] = struct{}{}
	}
}
